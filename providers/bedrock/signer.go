package bedrock

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"

	llmprovider "github.com/starhound/null-llm-go"
)

// sigV4 signs raw HTTP requests for the Bedrock endpoints the Anthropic
// SDK does not cover: streamed Llama invocations and model listing.
type sigV4 struct {
	credentials aws.CredentialsProvider
	region      string
	signer      *v4.Signer
	now         func() time.Time
}

func newSigner(credentials aws.CredentialsProvider, region string) *sigV4 {
	return &sigV4{
		credentials: credentials,
		region:      region,
		signer:      v4.NewSigner(),
		now:         time.Now,
	}
}

func (s *sigV4) prepare(service string) func(req *http.Request, body []byte) error {
	return func(req *http.Request, body []byte) error {
		if s.credentials == nil {
			return fmt.Errorf("%w: no AWS credentials configured", llmprovider.ErrAuthentication)
		}
		creds, err := s.credentials.Retrieve(req.Context())
		if err != nil {
			return fmt.Errorf("%w: failed to retrieve AWS credentials: %v", llmprovider.ErrAuthentication, err)
		}
		sum := sha256.Sum256(body)
		if err := s.signer.SignHTTP(req.Context(), creds, req, hex.EncodeToString(sum[:]), service, s.region, s.now()); err != nil {
			return fmt.Errorf("%w: failed to sign request: %v", llmprovider.ErrAuthentication, err)
		}
		return nil
	}
}

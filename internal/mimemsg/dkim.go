package mimemsg

import (
	"errors"
	"fmt"

	"github.com/toorop/go-dkim"
)

// defaultSignedHeaders are covered by the signature when none are configured.
var defaultSignedHeaders = []string{"from", "to", "subject", "date", "message-id"}

// DKIMOptions configures DKIM signing of rendered messages.
type DKIMOptions struct {
	Domain   string
	Selector string
	// PrivateKey is the PEM-encoded RSA signing key.
	PrivateKey []byte
	// Headers overrides the list of signed header fields.
	Headers []string
}

var errIncompleteDKIM = errors.New("dkim: domain, selector and private key are required")

func (o *DKIMOptions) sign(raw *[]byte) error {
	if o.Domain == "" || o.Selector == "" || len(o.PrivateKey) == 0 {
		return errIncompleteDKIM
	}

	opts := dkim.NewSigOptions()
	opts.PrivateKey = o.PrivateKey
	opts.Domain = o.Domain
	opts.Selector = o.Selector
	opts.Canonicalization = "relaxed/relaxed"
	opts.AddSignatureTimestamp = true
	opts.Headers = o.Headers
	if len(opts.Headers) == 0 {
		opts.Headers = defaultSignedHeaders
	}

	if err := dkim.Sign(raw, opts); err != nil {
		return fmt.Errorf("dkim: failed to sign message: %w", err)
	}
	return nil
}

package rpc

import "errors"

var (
	errNoCredential         = errors.New("rpc call requires a management credential")
	errRateLimited          = errors.New("rpc: sender exceeded the inbound rate limit")
	errUnknownKind          = errors.New("rpc: unrecognized envelope kind")
	errMalformedPayload     = errors.New("rpc: malformed envelope payload")
	errCredentialNotFound   = errors.New("rpc: referenced credential not found")
	errSignatureInvalid     = errors.New("rpc: signature verification failed")
	errMissingPeriod        = errors.New("rpc: envelope payload missing period")
	errProposalNotFound     = errors.New("rpc: no proposal exists for period")
	errNotReadyForExecution = errors.New("rpc: proposal is not ready for execution")
)

package reputation

import (
	"fmt"

	"hivecoordinator/internal/hiveerr"
)

func hiveerrCapacity(op, subjectID string) error {
	return hiveerr.Capacity(op, fmt.Errorf("reputation: subject %s at credential cap (%d)", subjectID, maxCredentialsPerSubject))
}

func errUnknownDomain(d Domain) error        { return fmt.Errorf("reputation: unknown domain %q", d) }
func errMissingMetric(name string) error     { return fmt.Errorf("reputation: missing required metric %q", name) }
func errUnknownMetric(name string) error     { return fmt.Errorf("reputation: unknown metric %q", name) }
func errMetricOutOfRange(name string, v, lo, hi float64) error {
	return fmt.Errorf("reputation: metric %q value %g out of range [%g,%g]", name, v, lo, hi)
}

var (
	errSelfIssuance       = fmt.Errorf("reputation: issuer cannot issue to self")
	errInvalidOutcome     = fmt.Errorf("reputation: invalid outcome")
	errInvalidPeriod      = fmt.Errorf("reputation: period_end must be after period_start")
	errEmptySignature     = fmt.Errorf("reputation: signer returned empty signature")
	errProfileMismatch    = fmt.Errorf("reputation: metrics do not conform to domain profile")
	errExpired            = fmt.Errorf("reputation: credential expired")
	errRevoked            = fmt.Errorf("reputation: credential revoked")
	errSignatureInvalid   = fmt.Errorf("reputation: signature verification failed")
	errNotIssuer          = fmt.Errorf("reputation: only the original issuer may revoke")
	errUnknownCredential  = fmt.Errorf("reputation: unknown credential")
)

package mgmt

import "fmt"

func errMissingParam(name string) error {
	return fmt.Errorf("mgmt: required parameter %q missing", name)
}

func errParamType(name string, t ParamType) error {
	return fmt.Errorf("mgmt: parameter %q must be of type %s", name, t)
}

var (
	errCredentialRevoked     = fmt.Errorf("mgmt: credential revoked")
	errCredentialOutOfWindow = fmt.Errorf("mgmt: credential outside valid time window")
	errInsufficientTier      = fmt.Errorf("mgmt: credential tier insufficient for action")
	errSchemaNotAllowed      = fmt.Errorf("mgmt: schema_id not permitted by credential")
	errUnknownAction         = fmt.Errorf("mgmt: unknown schema or action")
	errValidUntilBeforeFrom  = fmt.Errorf("mgmt: valid_until must be after valid_from")
	errValidityTooLong       = fmt.Errorf("mgmt: validity window exceeds 730 days")
	errEmptySignature        = fmt.Errorf("mgmt: signer returned empty signature")
	errSignatureInvalid      = fmt.Errorf("mgmt: signature verification failed")
	errOrphanReceipt         = fmt.Errorf("mgmt: receipt references unknown credential")
	errRevokedReceipt        = fmt.Errorf("mgmt: receipt references revoked credential")
)

package middleware

// Headers carrying the EIP-712 authorization for a write.
const (
	HeaderFundSigner    = "X-Fund-Signer"
	HeaderFundSignature = "X-Fund-Signature"
)

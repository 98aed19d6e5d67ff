package security

import (
	"bytes"
	"fmt"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod = 30
	totpDigits = otp.DigitsSix
	totpSkew   = 1
)

// TOTPEnrollment holds the material produced for a new authenticator enrollment.
type TOTPEnrollment struct {
	Secret       string
	ProvisionURI string
	QRCodePNG    []byte
}

// GenerateTOTPEnrollment creates a fresh TOTP secret for the account along
// with an otpauth:// URI and a QR code PNG for authenticator apps.
func GenerateTOTPEnrollment(issuer, accountName string) (*TOTPEnrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		Period:      totpPeriod,
		Digits:      totpDigits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("totp: generate key: %w", err)
	}

	img, err := key.Image(256, 256)
	if err != nil {
		return nil, fmt.Errorf("totp: render qr image: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("totp: encode qr png: %w", err)
	}

	return &TOTPEnrollment{
		Secret:       key.Secret(),
		ProvisionURI: key.URL(),
		QRCodePNG:    buf.Bytes(),
	}, nil
}

// ValidateTOTP checks a six-digit code against the secret at the given time.
// One period of clock skew is tolerated in each direction.
func ValidateTOTP(code, secret string, at time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    totpDigits,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

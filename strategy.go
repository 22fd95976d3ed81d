package journal

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Goal is the primary objective of the strategy.
type Goal string

const (
	Growth       Goal = "growth"
	Income       Goal = "income"
	Balanced     Goal = "balanced"
	Preservation Goal = "preservation"
)

// ParseGoal parses a strategy goal.
func ParseGoal(s string) (Goal, error) {
	switch g := Goal(strings.ToLower(strings.TrimSpace(s))); g {
	case Growth, Income, Balanced, Preservation:
		return g, nil
	default:
		return "", fmt.Errorf("unknown goal %q (use growth|income|balanced|preservation)", s)
	}
}

// Risk is the risk tolerance of the strategy.
type Risk string

const (
	Conservative Risk = "conservative"
	Moderate     Risk = "moderate"
	Aggressive   Risk = "aggressive"
)

// ParseRisk parses a risk tolerance.
func ParseRisk(s string) (Risk, error) {
	switch r := Risk(strings.ToLower(strings.TrimSpace(s))); r {
	case Conservative, Moderate, Aggressive:
		return r, nil
	default:
		return "", fmt.Errorf("unknown risk tolerance %q (use conservative|moderate|aggressive)", s)
	}
}

// Strategy is the user's written investment manifesto.
type Strategy struct {
	Goal         Goal   `json:"goal"`
	Risk         Risk   `json:"riskTolerance"`
	HorizonYears int    `json:"horizonYears"`
	Notes        string `json:"notes"`
	// Signature is a data URL of the signature image, empty if unsigned.
	Signature string `json:"signature,omitempty"`
}

// DefaultStrategy returns the strategy of a fresh journal.
func DefaultStrategy() Strategy {
	return Strategy{Goal: Growth, Risk: Moderate, HorizonYears: 10}
}

// Validate checks the enums and the horizon.
func (s Strategy) Validate() error {
	if _, err := ParseGoal(string(s.Goal)); err != nil {
		return err
	}
	if _, err := ParseRisk(string(s.Risk)); err != nil {
		return err
	}
	if s.HorizonYears < 0 || s.HorizonYears > 100 {
		return fmt.Errorf("horizon must be between 0 and 100 years, got %d", s.HorizonYears)
	}
	return nil
}

// Sign stores image (PNG or JPEG bytes) as the signature.
func (s *Strategy) Sign(image []byte) error {
	mime, err := imageMime(image)
	if err != nil {
		return err
	}
	s.Signature = "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)
	return nil
}

// SignatureImage decodes the signature data URL. It returns the raw image and
// its type ("PNG" or "JPG"), or nil if the strategy is unsigned.
func (s Strategy) SignatureImage() ([]byte, string, error) {
	if s.Signature == "" {
		return nil, "", nil
	}
	header, payload, ok := strings.Cut(s.Signature, ",")
	if !ok || !strings.HasPrefix(header, "data:") || !strings.HasSuffix(header, ";base64") {
		return nil, "", fmt.Errorf("signature is not a base64 data URL")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("cannot decode signature: %w", err)
	}
	switch strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64") {
	case "image/png":
		return data, "PNG", nil
	case "image/jpeg":
		return data, "JPG", nil
	default:
		return nil, "", fmt.Errorf("unsupported signature type %q", header)
	}
}

func imageMime(b []byte) (string, error) {
	switch {
	case len(b) > 8 && string(b[:8]) == "\x89PNG\r\n\x1a\n":
		return "image/png", nil
	case len(b) > 3 && b[0] == 0xFF && b[1] == 0xD8 && b[2] == 0xFF:
		return "image/jpeg", nil
	default:
		return "", fmt.Errorf("signature must be a PNG or JPEG image")
	}
}

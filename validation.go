package journal

import "fmt"

// validateTrade checks the share count and price of a buy or sell.
func validateTrade(shares Quantity, price Money) error {
	if !shares.IsPositive() {
		return fmt.Errorf("shares must be positive, got %v: %w", shares, ErrInvalidQuantity)
	}
	if price.IsNegative() {
		return fmt.Errorf("price must not be negative, got %v: %w", price, ErrInvalidQuantity)
	}
	return nil
}

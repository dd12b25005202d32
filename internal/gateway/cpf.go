package gateway

// ValidCPF checks the two weighted mod-11 check digits of a Brazilian CPF.
// All-repeated-digit sequences pass the arithmetic but are forgeries, so
// they are rejected explicitly.
func ValidCPF(document string) bool {
	if len(document) != 11 {
		return false
	}
	digits := make([]int, 11)
	repeated := true
	for i := 0; i < 11; i++ {
		c := document[i]
		if c < '0' || c > '9' {
			return false
		}
		digits[i] = int(c - '0')
		if digits[i] != digits[0] {
			repeated = false
		}
	}
	if repeated {
		return false
	}
	if checkDigit(digits, 10) != digits[9] {
		return false
	}
	return checkDigit(digits, 11) == digits[10]
}

// checkDigit computes a weighted sum over the leading digits with weights
// descending from startWeight, mapped through mod 11.
func checkDigit(digits []int, startWeight int) int {
	sum := 0
	for i := 0; i < startWeight-1; i++ {
		sum += digits[i] * (startWeight - i)
	}
	rest := (sum * 10) % 11
	if rest == 10 {
		return 0
	}
	return rest
}

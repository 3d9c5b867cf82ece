package maxipago

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDigitsOnly(t *testing.T) {
	assert.Equal(t, "52998224725", DigitsOnly("529.982.247-25"))
	assert.Equal(t, "", DigitsOnly("abc"))
	assert.Equal(t, "35999990000", DigitsOnly("(35) 99999-0000"))
}

func TestFormatPhone(t *testing.T) {
	assert.Equal(t, "(35)999990000", FormatPhone("35999990000"))
	assert.Equal(t, "(35)999990000", FormatPhone("+55 (35) 99999-0000"))
	assert.Equal(t, "(35)35550000", FormatPhone("3535550000"))
	// Too short for an area code: pass through stripped.
	assert.Equal(t, "99990000", FormatPhone("9999-0000"))
}

func TestFormatZipCode(t *testing.T) {
	assert.Equal(t, "37701-000", FormatZipCode("37701000"))
	assert.Equal(t, "37701-000", FormatZipCode("37701-000"))
	assert.Equal(t, "3770", FormatZipCode("3770"))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "160.00", FormatAmount(16000))
	assert.Equal(t, "0.05", FormatAmount(5))
	assert.Equal(t, "1.50", FormatAmount(150))
	assert.Equal(t, "0.00", FormatAmount(0))
}

func TestSplitName(t *testing.T) {
	first, last := SplitName("Maria da Silva Souza")
	assert.Equal(t, "Maria", first)
	assert.Equal(t, "da Silva Souza", last)

	first, last = SplitName("Cher")
	assert.Equal(t, "Cher", first)
	assert.Equal(t, "Cher", last)

	first, last = SplitName("  ")
	assert.Empty(t, first)
	assert.Empty(t, last)
}

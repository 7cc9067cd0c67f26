package index

import (
	"fmt"

	"github.com/poiesic/docstage/core"
)

// ValidateCollectionName checks that name is 3 to 63 characters of letters,
// digits, '.', '_' or '-', starting and ending with a letter or digit.
func ValidateCollectionName(name string) error {
	if len(name) < 3 || len(name) > 63 {
		return fmt.Errorf("%w: collection name %q must be 3 to 63 characters", core.ErrConfiguration, name)
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		alnum := c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
		if alnum {
			continue
		}
		if (c == '.' || c == '_' || c == '-') && i > 0 && i < len(name)-1 {
			continue
		}
		return fmt.Errorf("%w: collection name %q has invalid character %q", core.ErrConfiguration, name, c)
	}
	return nil
}

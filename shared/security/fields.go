package security

import "fmt"

// Field points at a sensitive string value and the marker recording whether that value
// currently holds ciphertext.
type Field struct {
	Name      string
	Value     *string
	Encrypted *bool
}

// EncryptFields encrypts every non-empty, unmarked field in place and sets its marker.
// Fields that are already marked are left untouched, so calling it twice is safe.
func (c *FieldCipher) EncryptFields(fields []Field) error {
	for _, f := range fields {
		if *f.Encrypted || *f.Value == "" {
			continue
		}

		blob, err := c.Encrypt(*f.Value)
		if err != nil {
			return fmt.Errorf("encrypt field %s: %w", f.Name, err)
		}

		*f.Value = blob
		*f.Encrypted = true
	}

	return nil
}

// DecryptFields decrypts every marked field in place and clears its marker.
// Unmarked fields are treated as plaintext and skipped.
func (c *FieldCipher) DecryptFields(fields []Field) error {
	for _, f := range fields {
		if !*f.Encrypted {
			continue
		}

		plaintext, err := c.Decrypt(*f.Value)
		if err != nil {
			return fmt.Errorf("decrypt field %s: %w", f.Name, err)
		}

		*f.Value = plaintext
		*f.Encrypted = false
	}

	return nil
}

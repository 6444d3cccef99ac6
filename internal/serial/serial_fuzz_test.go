//go:build go1.18

package serial

import "testing"

// FuzzParse checks that Parse never panics and that everything it accepts
// re-encodes to the identical string.
func FuzzParse(f *testing.F) {
	f.Add("LK-14-0007-2023-1001-1250")
	f.Add("TH-3A-123456-1999-0-0")
	f.Add("LK-14-0007-2023-01-2")
	f.Add("")
	f.Add("-----")

	f.Fuzz(func(t *testing.T, input string) {
		fields, err := Parse(input)
		if err != nil {
			return
		}
		out, err := Encode(fields)
		if err != nil {
			t.Fatalf("parsed %q but could not re-encode: %v", input, err)
		}
		if out != input {
			t.Fatalf("round trip mismatch: %q -> %q", input, out)
		}
	})
}

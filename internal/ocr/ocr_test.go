package ocr

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"multiline", "CHATEAU\nMARGAUX\n\n2015", "CHATEAU MARGAUX 2015"},
		{"runs of spaces", "BAROLO   DOCG\t 2019", "BAROLO DOCG 2019"},
		{"already clean", "RIOJA RESERVA", "RIOJA RESERVA"},
		{"whitespace only", " \n\t ", ""},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in); got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

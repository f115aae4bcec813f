package perception

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanResponse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  {\"a\":1}\n", "{\"a\":1}"},
		{"closed span", "<unused94>thinking about it<unused95>{\"a\":1}", "{\"a\":1}"},
		{"multiline span", "<unused94>line one\nline two<unused95>\nanswer", "answer"},
		{"unterminated span", "answer first <unused94>trailing thoughts\nmore", "answer first"},
		{"two spans", "<unused94>a<unused95>x<unused94>b<unused95>y", "xy"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanResponse(tt.in))
		})
	}
}

package application_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ericfisherdev/prreaper/internal/application"
)

func TestRenderMessage(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		days int
		want string
	}{
		{
			name: "single placeholder",
			tmpl: "Inactive for {{days}} days.",
			days: 20,
			want: "Inactive for 20 days.",
		},
		{
			name: "every occurrence replaced",
			tmpl: "{{days}} days, yes {{days}}",
			days: 3,
			want: "3 days, yes 3",
		},
		{
			name: "no placeholder is unchanged",
			tmpl: "Granted a stay of execution.",
			days: 99,
			want: "Granted a stay of execution.",
		},
		{
			name: "near-miss placeholders are literal",
			tmpl: "{{ days }} {days} {{Days}}",
			days: 5,
			want: "{{ days }} {days} {{Days}}",
		},
		{
			name: "zero days",
			tmpl: "{{days}}",
			days: 0,
			want: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, application.RenderMessage(tt.tmpl, tt.days))
		})
	}
}

func TestDefaultMessages(t *testing.T) {
	msgs := application.DefaultMessages()

	assert.Equal(t,
		"This PR has been inactive for 20 days. It will be automatically closed in 7 days unless activity is detected.",
		application.RenderMessage(msgs.Warning, 20),
	)
	assert.Equal(t,
		"This PR has been closed due to 27 days of inactivity.",
		application.RenderMessage(msgs.Closing, 27),
	)
	assert.NotContains(t, msgs.Reprieve, "{{days}}")
}

package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateWebhookURL(t *testing.T) {
	t.Run("accepts public https", func(t *testing.T) {
		for _, u := range []string{
			"https://hooks.example.com/x",
			"https://example.com:8443/path?q=1",
			"https://203.0.113.9/webhook",
		} {
			assert.NoError(t, ValidateWebhookURL(u), u)
		}
	})

	t.Run("rejects unsafe destinations", func(t *testing.T) {
		for _, u := range []string{
			"http://hooks.example.com/x",
			"ftp://example.com/x",
			"https://localhost/x",
			"https://api.localhost/x",
			"https://127.0.0.1/x",
			"https://[::1]/x",
			"https://10.1.2.3/x",
			"https://172.16.0.1/x",
			"https://192.168.1.1/x",
			"https://169.254.169.254/latest/meta-data",
			"https://0.0.0.0/x",
			"https:///no-host",
			"not a url at all://",
		} {
			assert.Error(t, ValidateWebhookURL(u), u)
		}
	})
}

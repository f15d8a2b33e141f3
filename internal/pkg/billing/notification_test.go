package billing

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "test-key"

func TestParseNotificationJSON(t *testing.T) {
	body := []byte(`{"order_id":"ORDER-1","status":1,"amount":"39.00","sign":"abc"}`)

	n, err := ParseNotification("application/json; charset=utf-8", body)
	require.NoError(t, err)
	assert.Equal(t, NotificationJSON, n.Kind)
	assert.Equal(t, "ORDER-1", n.Params["order_id"])
	assert.Equal(t, json.Number("1"), n.Params["status"])
	assert.Equal(t, "abc", n.Signature())
	assert.Nil(t, n.RawItems)
}

func TestParseNotificationInvalidJSON(t *testing.T) {
	_, err := ParseNotification("application/json", []byte(`{not json`))
	assert.Error(t, err)

	_, err = ParseNotification("application/json", []byte(`null`))
	assert.Error(t, err)
}

func TestParseNotificationFormReconstructsLists(t *testing.T) {
	form := url.Values{}
	form.Set("order_id", "ORDER-1")
	form.Set("status", "1")
	form.Set("items[1][name]", "Second")
	form.Set("items[0][name]", "Weekly Plan")
	form.Set("items[0][price]", "39.00")
	form.Set("broken[x]", "ignored")

	n, err := ParseNotification("application/x-www-form-urlencoded", []byte(form.Encode()))
	require.NoError(t, err)
	assert.Equal(t, NotificationForm, n.Kind)
	assert.Equal(t, "ORDER-1", n.Params["order_id"])
	assert.NotContains(t, n.Params, "broken[x]")

	items, ok := n.Params["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 2)
	assert.Equal(t, map[string]any{"name": "Weekly Plan", "price": "39.00"}, items[0])
	assert.Equal(t, map[string]any{"name": "Second"}, items[1])
	require.Len(t, n.Items, 2)
}

func TestParseNotificationFormDefaultsWhenContentTypeMissing(t *testing.T) {
	n, err := ParseNotification("", []byte("order_id=ORDER-9&status=0"))
	require.NoError(t, err)
	assert.Equal(t, NotificationForm, n.Kind)
	assert.Equal(t, "ORDER-9", n.Params["order_id"])
}

func TestNotificationVerifyJSONMessage(t *testing.T) {
	params := map[string]any{
		"order_id":        "ORDER-1",
		"status":          "1",
		"amount":          "39.00",
		"currency":        "ILS",
		"subscription_id": "SUB-1",
		"transaction_id":  "TX-1",
	}
	sign := Sign(params, testAPIKey)
	assert.Equal(t, "2cf2240daa7681572688a9eafa6fd47a49f1f1d4ffd55b6eec58b04559881ec8", sign)

	params["sign"] = sign
	body, err := json.Marshal(params)
	require.NoError(t, err)

	n, err := ParseNotification("application/json", body)
	require.NoError(t, err)
	assert.NoError(t, n.Verify(testAPIKey))
	assert.ErrorIs(t, n.Verify("other"), ErrInvalidSignature)
}

func TestNotificationVerifyKeepsItemsString(t *testing.T) {
	items := `[{"name":"Weekly Plan","qty":"1","price":"39.00","vat":"0"}]`
	params := map[string]any{
		"order_id":        "ORDER-2",
		"status":          "1",
		"amount":          "39.00",
		"subscription_id": "SUB-2",
		"items":           items,
	}
	sign := Sign(params, testAPIKey)
	assert.Equal(t, "2cfd23fa8e2dcb5232335d13d3c286ea11a30c595129440caf8c29adf012fd96", sign)

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v.(string))
	}
	form.Set("sign", sign)

	n, err := ParseNotification("application/x-www-form-urlencoded", []byte(form.Encode()))
	require.NoError(t, err)
	require.NotNil(t, n.RawItems)
	assert.Equal(t, items, *n.RawItems)
	require.Len(t, n.Items, 1)
	assert.Equal(t, "Weekly Plan", n.Items[0]["name"])
	assert.Equal(t, items, n.Params["items"], "params are not mutated by item decoding")
	assert.NoError(t, n.Verify(testAPIKey))
}

func TestNotificationTamperedFieldFailsVerification(t *testing.T) {
	params := map[string]any{"order_id": "ORDER-1", "status": "1"}
	form := url.Values{}
	form.Set("order_id", "ORDER-1")
	form.Set("status", "0")
	form.Set("sign", Sign(params, testAPIKey))

	n, err := ParseNotification("application/x-www-form-urlencoded", []byte(form.Encode()))
	require.NoError(t, err)
	assert.ErrorIs(t, n.Verify(testAPIKey), ErrInvalidSignature)
}

func TestNotificationMissingSignFails(t *testing.T) {
	n, err := ParseNotification("application/x-www-form-urlencoded", []byte("order_id=ORDER-1&status=1"))
	require.NoError(t, err)
	assert.ErrorIs(t, n.Verify(testAPIKey), ErrInvalidSignature)
}

func TestNotificationParamsWithoutSign(t *testing.T) {
	n, err := ParseNotification("application/x-www-form-urlencoded", []byte("order_id=ORDER-1&sign=abc"))
	require.NoError(t, err)

	params := n.ParamsWithoutSign()
	assert.NotContains(t, params, "sign")
	assert.Contains(t, n.Params, "sign")
	assert.JSONEq(t, `{"order_id":"ORDER-1","sign":"abc"}`, string(n.PayloadJSON()))
}

func TestNotificationKindString(t *testing.T) {
	assert.Equal(t, "json", NotificationJSON.String())
	assert.Equal(t, "form", NotificationForm.String())
	assert.Equal(t, "unknown", NotificationKind(0).String())
}

func TestNotificationVerifyJSONNumbersAsProviderPrintsThem(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		signed string
	}{
		{"trailing zero", "39.0", "39"},
		{"two decimals", "1.10", "1.1"},
		{"exponent", "1e2", "100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sign := sha256Hex(tt.signed + ":ORDER-1:1:" + testAPIKey)
			body := []byte(`{"amount":` + tt.amount + `,"order_id":"ORDER-1","status":1,"sign":"` + sign + `"}`)

			n, err := ParseNotification("application/json", body)
			require.NoError(t, err)
			assert.NoError(t, n.Verify(testAPIKey))
			assert.JSONEq(t, string(body), string(n.PayloadJSON()), "raw payload keeps the delivered text")
		})
	}
}

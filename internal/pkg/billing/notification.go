package billing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// NotificationKind tells how a webhook body was framed on the wire.
type NotificationKind int

const (
	NotificationJSON NotificationKind = iota + 1
	NotificationForm
)

func (k NotificationKind) String() string {
	switch k {
	case NotificationJSON:
		return "json"
	case NotificationForm:
		return "form"
	default:
		return "unknown"
	}
}

const itemsKey = "items"

var bracketKeyPattern = regexp.MustCompile(`^(.+?)\[(\d+)\]\[(.+?)\]$`)

// Notification is a parsed webhook delivery.
//
// Params holds the parameters exactly as the provider sent them and is never
// mutated after parsing. When items arrived as a JSON-encoded string, RawItems
// keeps that string (it is what the provider signed) and Items holds the
// decoded list for business logic.
type Notification struct {
	Kind     NotificationKind
	Params   map[string]any
	RawItems *string
	Items    []map[string]any
}

// ParseNotification normalizes a JSON or form-encoded webhook body.
func ParseNotification(contentType string, body []byte) (*Notification, error) {
	if isJSONContentType(contentType) {
		return parseJSONNotification(body)
	}
	return parseFormNotification(body)
}

func isJSONContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(strings.ToLower(contentType), "application/json")
	}
	return mediaType == "application/json"
}

func parseJSONNotification(body []byte) (*Notification, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var params map[string]any
	if err := dec.Decode(&params); err != nil {
		return nil, fmt.Errorf("decode json notification: %w", err)
	}
	if params == nil {
		return nil, errors.New("decode json notification: empty payload")
	}

	n := &Notification{Kind: NotificationJSON, Params: params}
	n.resolveItems()
	return n, nil
}

func parseFormNotification(body []byte) (*Notification, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("decode form notification: %w", err)
	}

	params := make(map[string]any, len(values))
	lists := make(map[string]map[int]map[string]any)
	for key, vs := range values {
		value := ""
		if len(vs) > 0 {
			value = vs[len(vs)-1]
		}

		if !strings.Contains(key, "[") || !strings.Contains(key, "]") {
			params[key] = value
			continue
		}
		m := bracketKeyPattern.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		index, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		name, prop := m[1], m[3]
		if lists[name] == nil {
			lists[name] = make(map[int]map[string]any)
		}
		if lists[name][index] == nil {
			lists[name][index] = make(map[string]any)
		}
		lists[name][index][prop] = value
	}

	for name, byIndex := range lists {
		indexes := make([]int, 0, len(byIndex))
		for i := range byIndex {
			indexes = append(indexes, i)
		}
		sort.Ints(indexes)

		list := make([]any, 0, len(indexes))
		for _, i := range indexes {
			list = append(list, byIndex[i])
		}
		params[name] = list
	}

	n := &Notification{Kind: NotificationForm, Params: params}
	n.resolveItems()
	return n, nil
}

// resolveItems fills RawItems/Items without touching Params.
func (n *Notification) resolveItems() {
	switch v := n.Params[itemsKey].(type) {
	case string:
		raw := v
		n.RawItems = &raw
		var decoded []map[string]any
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			n.Items = decoded
		}
	case []any:
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				n.Items = append(n.Items, m)
			}
		}
	}
}

// SignedParams rebuilds the parameter set the provider signed. Items are
// given back in their original string form when they were delivered as one.
func (n *Notification) SignedParams() map[string]any {
	params := make(map[string]any, len(n.Params))
	for k, v := range n.Params {
		params[k] = v
	}
	if n.RawItems != nil {
		params[itemsKey] = *n.RawItems
	}
	return params
}

// Signature is the sign value received with the notification.
func (n *Notification) Signature() string {
	s, _ := scalarString(n.Params[SignKey])
	return s
}

// Verify checks the notification against the shared secret.
func (n *Notification) Verify(secret string) error {
	if !VerifySignature(n.SignedParams(), secret, n.Signature()) {
		return ErrInvalidSignature
	}
	return nil
}

// ParamsWithoutSign is the parameter set for forensic logging.
func (n *Notification) ParamsWithoutSign() map[string]any {
	params := n.SignedParams()
	delete(params, SignKey)
	return params
}

// PayloadJSON renders the notification for the ledger's raw payload column.
func (n *Notification) PayloadJSON() []byte {
	b, err := json.Marshal(n.Params)
	if err != nil {
		return []byte("{}")
	}
	return b
}

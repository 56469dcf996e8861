package extract

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/Veraticus/balance-sync-recon/internal/model"
)

const (
	keyErrorMessage = "error_message"
	keySyncStatus   = "sync_status"
)

// Known fields and the log keys they are read from, in order of preference.
// Top-level keys win over the flattened transaction_ copies.
var (
	transactionIDKeys = []string{"transaction_id", "transactionId"}
	userIDKeys        = []string{"userId", "user_id", "transaction_userId"}
	currencyKeys      = []string{"currency", "transaction_currency"}
	amountKeys        = []string{"amount", "transaction_amount"}
	vatKeys           = []string{"vat", "transaction_vat"}
	oldBalanceKeys    = []string{"oldBalance", "old_balance", "transaction_oldBalance"}
	newBalanceKeys    = []string{"newBalance", "new_balance", "transaction_newBalance"}
	paymentKeys       = []string{"paymentBalance", "payment_balance"}
	subscriptionKeys  = []string{"subscriptionBalance", "subscription_balance"}
	eventTypeKeys     = []string{"type", "event_type", "transaction_type"}
	sourceKeys        = []string{"source", "transaction_source"}
	actionKeys        = []string{"action", "transaction_action"}
	timestampKeys     = []string{"time", "timestamp", "transaction_time", "transaction_timestamp"}
	requestIDKeys     = []string{"RequestId", "requestId"}
)

// droppedKeyPrefixes are never stored, not even as extra metadata.
var droppedKeyPrefixes = []string{"_aws"}

// buildRecord maps a merged row onto a TransactionRecord. Keys consumed by a
// known field are removed; everything else lands in Extra as a string.
func buildRecord(row map[string]any, filename, requestID string) model.TransactionRecord {
	rest := make(map[string]any, len(row))
	for k, v := range row {
		rest[k] = v
	}

	rec := model.TransactionRecord{
		TransactionID:       takeString(rest, transactionIDKeys),
		UserID:              takeString(rest, userIDKeys),
		Currency:            strings.ToUpper(takeString(rest, currencyKeys)),
		Amount:              takeFloat(rest, amountKeys),
		VAT:                 takeFloat(rest, vatKeys),
		OldBalance:          takeFloat(rest, oldBalanceKeys),
		NewBalance:          takeFloat(rest, newBalanceKeys),
		PaymentBalance:      takeFloat(rest, paymentKeys),
		SubscriptionBalance: takeFloat(rest, subscriptionKeys),
		EventType:           model.EventType(strings.ToUpper(takeString(rest, eventTypeKeys))),
		Source:              takeString(rest, sourceKeys),
		Action:              takeString(rest, actionKeys),
		Timestamp:           takeString(rest, timestampKeys),
		ErrorMessage:        takeString(rest, []string{keyErrorMessage}),
		SyncStatus:          model.SyncStatus(takeString(rest, []string{keySyncStatus})),
		Filename:            filename,
		RequestID:           requestID,
	}
	if id := takeString(rest, requestIDKeys); id != "" && rec.RequestID == "" {
		rec.RequestID = id
	}

	for k, v := range rest {
		if isDropped(k) {
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]string)
		}
		rec.Extra[k] = toString(v)
	}

	rec.Hash = rec.GenerateHash()
	return rec
}

func isDropped(key string) bool {
	for _, p := range droppedKeyPrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// take removes and returns the first present key from row.
func take(row map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := row[k]; ok {
			delete(row, k)
			return v, true
		}
	}
	return nil, false
}

func takeString(row map[string]any, keys []string) string {
	v, _ := take(row, keys)
	return toString(v)
}

func takeFloat(row map[string]any, keys []string) float64 {
	v, _ := take(row, keys)
	return toFloat(v)
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// toFloat coerces a decoded value to float64, defaulting to 0.
func toFloat(v any) float64 {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0
		}
		return f
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

// RequestID is the request identifier used throughout SyncLog.
const RequestID = "2d79cb3e-8a76-4a7e-be51-1af6e51c3f65"

// SyncLog is a small balance-sync log covering the common shapes: a strict
// JSON start payload with a follow-up mismatch error in Python-literal
// style, a relaxed payload with no event type, and an unparseable fragment.
//
// Extracted and reconciled it yields two records: a Bahrain credit whose
// payment and subscription balances differ (BALANCE_SYNC) and a credit with
// no issue. The last fragment is one failed parse.
const SyncLog = "2023-12-12T11:28:13.300Z\t" + RequestID + "\tINFO\tStart syncing the balance " +
	`{"userId":"daa2bf74-cf31-4552-9e85-acb48a7c3f90","currency":"BHD","amount":22,"vat":2,"oldBalance":433,"newBalance":453,"type":"CREDIT","time":"2023-12-12T11:28:13.312Z","transaction":{"id":"01HHEWH0NAQKZ4ZMFW6PM7K046"}}` + "\n" +
	"2023-12-12T11:28:13.367Z\t" + RequestID + "\tERROR\tBalances not in sync " +
	`{'userId': 'daa2bf74-cf31-4552-9e85-acb48a7c3f90', 'subscriptionBalance': 433, 'paymentBalance': 850}` + "\n" +
	"2023-12-12T11:29:00.000Z\t" + RequestID + "\tINFO\tStart syncing the balance " +
	`{userId: 'u2', amount: 10, vat: 0, oldBalance: 5, newBalance: 15, type: None, time: '2023-12-12T11:29:00.000Z'}` + "\n" +
	"2023-12-12T11:30:00.000Z\t" + RequestID + "\tINFO\tStart syncing the balance { not a json object }\n"

// EmptyLog has no transaction in it.
const EmptyLog = "2023-12-13T00:00:00.000Z INFO nothing to see\n"

// WriteGzip compresses data into path, creating parent directories.
func WriteGzip(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	zw := gzip.NewWriter(f)
	if _, err := zw.Write(data); err != nil {
		t.Fatalf("failed to compress %s: %v", path, err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to finish %s: %v", path, err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("failed to close %s: %v", path, err)
	}
}

// WriteExport lays text out the way the log exporter does: one folder per
// log holding a single compressed object. It returns the export root.
func WriteExport(t *testing.T, root, folder, text string) string {
	t.Helper()
	WriteGzip(t, filepath.Join(root, folder, "000000.gz"), []byte(text))
	return root
}

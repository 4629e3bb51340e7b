package audit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aios/autonomy-core/internal/storage"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	db, err := storage.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	l, err := Open(db)
	require.NoError(t, err)
	return l
}

func TestLedger_GenesisSeed(t *testing.T) {
	l := newTestLedger(t)
	require.Equal(t, Genesis, l.LastHash())
}

func TestLedger_RecordAdvancesChain(t *testing.T) {
	l := newTestLedger(t)
	before := l.LastHash()

	l.Record("exec-1", "fs.read", "agent-1", "task-1", "test", true, 50)

	after := l.LastHash()
	require.NotEqual(t, before, after)
	require.NotEqual(t, Genesis, after)

	ok, err := l.VerifyChain()
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLedger_VerifyChain_ManyEntriesWithFailures(t *testing.T) {
	l := newTestLedger(t)
	for i := 0; i < 25; i++ {
		l.Record("exec", "fs.read", "agent", "task", "bulk", i%7 != 0, int64(i))
	}
	ok, err := l.VerifyChain()
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLedger_VerifyChain_DetectsTamper(t *testing.T) {
	l := newTestLedger(t)
	l.Record("exec-1", "fs.read", "agent-1", "task-1", "r1", true, 10)
	l.Record("exec-2", "fs.write", "agent-1", "task-1", "r2", true, 20)
	l.Record("exec-3", "net.ping", "agent-2", "task-2", "r3", true, 30)

	ok, err := l.VerifyChain()
	require.NoError(t, err)
	require.True(t, ok)

	_, err = l.db.Exec(`UPDATE audit_log SET timestamp = 'tampered' WHERE seq = 2`)
	require.NoError(t, err)

	ok, err = l.VerifyChain()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLedger_ReopenContinuesChain(t *testing.T) {
	db, err := storage.Open("")
	require.NoError(t, err)
	defer db.Close()

	l1, err := Open(db)
	require.NoError(t, err)
	l1.Record("exec-1", "fs.read", "agent-1", "task-1", "r1", true, 10)

	l2, err := Open(db)
	require.NoError(t, err)
	require.Equal(t, l1.LastHash(), l2.LastHash())

	l2.Record("exec-2", "fs.write", "agent-1", "task-1", "r2", true, 20)
	ok, err := l2.VerifyChain()
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLedger_EveryExecutionProducesOneEntry(t *testing.T) {
	l := newTestLedger(t)
	l.Record("exec-1", "fs.read", "agent-1", "task-1", "ok", true, 5)
	l.Record("exec-2", "fs.write", "agent-1", "task-1", "denied", false, 0)

	entries, err := l.All()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.True(t, entries[0].Success)
	require.False(t, entries[1].Success)
}

package state

import (
	"testing"

	"github.com/zkipschain/zkips/pkg/account"
	"github.com/zkipschain/zkips/pkg/curve"
	"github.com/zkipschain/zkips/pkg/field"
)

func testAccount(id string, balance uint64) *account.Account {
	key := curve.ScalarBaseMul(field.FromUint64(uint64(len(id)) + 1))
	a := account.New(account.ID(id), key)
	a.SetBalance(balance)
	return a
}

func TestPutAccountChangesRoot(t *testing.T) {
	st := New()
	before := st.Root
	st.PutAccount(testAccount("alice", 100))
	if st.Root.Equal(before) {
		t.Fatal("PutAccount did not change the state root")
	}
	if st.Version != 1 {
		t.Fatalf("expected version 1, got %d", st.Version)
	}
}

func TestGetAccountRoundTrip(t *testing.T) {
	st := New()
	alice := testAccount("alice", 100)
	st.PutAccount(alice)
	got := st.GetAccount(account.ID("alice"))
	if got == nil || got.Balance != 100 {
		t.Fatal("GetAccount did not return the account just written")
	}
	if st.GetAccount(account.ID("bob")) != nil {
		t.Fatal("expected nil for an account that was never written")
	}
}

func TestDeleteAccountRestoresRoot(t *testing.T) {
	st := New()
	empty := st.Root
	st.PutAccount(testAccount("alice", 100))
	st.DeleteAccount(account.ID("alice"))
	if !st.Root.Equal(empty) {
		t.Fatal("deleting the only account did not restore the empty root")
	}
	if st.GetAccount(account.ID("alice")) != nil {
		t.Fatal("deleted account still reachable via GetAccount")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	st := New()
	st.PutAccount(testAccount("alice", 100))

	clone := st.Clone()
	clone.PutAccount(testAccount("bob", 50))

	if st.GetAccount(account.ID("bob")) != nil {
		t.Fatal("mutating the clone leaked into the original state")
	}
	if st.Root.Equal(clone.Root) {
		t.Fatal("clone with an extra account must have a different root")
	}
}

func TestRecomputeRootMatchesIncremental(t *testing.T) {
	st := New()
	st.PutAccount(testAccount("alice", 100))
	st.PutAccount(testAccount("bob", 200))
	incremental := st.Root

	rebuilt := st.RecomputeRoot()
	if !rebuilt.Equal(incremental) {
		t.Fatal("full rebuild diverged from the incrementally maintained root")
	}
}

func TestProofValidatesAgainstRoot(t *testing.T) {
	st := New()
	st.PutAccount(testAccount("alice", 100))
	receipt := st.Proof(account.ID("alice"), 1)
	if err := receipt.Validate(nil); err != nil {
		t.Fatalf("proof failed to validate: %v", err)
	}
}

func TestMemoryStorageSaveLoadRoundTrip(t *testing.T) {
	store := NewMemoryStorage()

	st := New()
	st.PutAccount(testAccount("alice", 100))
	st.PutAccount(testAccount("bob", 200))

	if err := store.SaveState(st); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	loaded, err := store.LoadState()
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if !loaded.Root.Equal(st.Root) {
		t.Fatal("loaded state root does not match saved state root")
	}
	if len(loaded.Accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(loaded.Accounts))
	}
}

func TestMemoryStorageAccountCRUD(t *testing.T) {
	store := NewMemoryStorage()
	alice := testAccount("alice", 100)

	if err := store.SaveAccount(alice); err != nil {
		t.Fatalf("SaveAccount: %v", err)
	}
	got, err := store.GetAccount(account.ID("alice"))
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got == nil || got.Balance != 100 {
		t.Fatal("GetAccount did not return the saved account")
	}

	if err := store.DeleteAccount(account.ID("alice")); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	got, err = store.GetAccount(account.ID("alice"))
	if err != nil {
		t.Fatalf("GetAccount after delete: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil after DeleteAccount")
	}
}

func TestMemoryStorageClear(t *testing.T) {
	store := NewMemoryStorage()
	store.SaveAccount(testAccount("alice", 1))
	store.SaveAccount(testAccount("bob", 2))

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	got, err := store.GetAccount(account.ID("alice"))
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got != nil {
		t.Fatal("expected no accounts to survive Clear")
	}
}

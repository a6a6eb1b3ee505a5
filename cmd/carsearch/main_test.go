package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/WessleyAI/carsearch/engine/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("MARKETCHECK_API_KEY", "")
	t.Setenv("AUTODEV_API_KEY", "")
	t.Setenv("APIFY_API_TOKEN", "")
	t.Setenv("GEO_TABLE_FILE", "")

	var out, errOut bytes.Buffer
	a := newApp()
	a.Writer = &out
	a.ErrWriter = &errOut
	full := append([]string{"carsearch", "--ledger", "sqlite", "--db", db}, args...)
	err := a.Run(full)
	return out.String(), err
}

func TestCreditsLifecycle(t *testing.T) {
	db := filepath.Join(t.TempDir(), "ledger.db")

	_, err := runCLI(t, db, "credits", "show", "--user", "alice")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	out, err := runCLI(t, db, "credits", "open", "--user", "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice: 3 credits remaining\n", out)

	out, err = runCLI(t, db, "credits", "add", "--user", "alice", "5")
	require.NoError(t, err)
	assert.Equal(t, "alice: 8 credits remaining\n", out)

	out, err = runCLI(t, db, "credits", "unlimited", "--user", "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice: unlimited\n", out)

	out, err = runCLI(t, db, "credits", "show", "--user", "alice", "--json")
	require.NoError(t, err)
	var acct domain.CreditAccount
	require.NoError(t, json.Unmarshal([]byte(out), &acct))
	assert.True(t, acct.Unlimited)
	assert.Equal(t, 8, acct.CreditsRemaining)
}

func TestCreditsAddValidation(t *testing.T) {
	db := filepath.Join(t.TempDir(), "ledger.db")
	_, err := runCLI(t, db, "credits", "add", "--user", "bob", "many")
	assert.ErrorContains(t, err, "whole number")

	_, err = runCLI(t, db, "credits", "open", "--user", "bob")
	require.NoError(t, err)
	_, err = runCLI(t, db, "credits", "add", "--user", "bob", "0")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestSearchChargesCredit(t *testing.T) {
	db := filepath.Join(t.TempDir(), "ledger.db")
	_, err := runCLI(t, db, "credits", "open", "--user", "carol", "--credits", "1")
	require.NoError(t, err)

	out, err := runCLI(t, db, "search", "--user", "carol", "--brand", "chevy", "--price-max", "30000", "silverado")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "No listings found"), out)

	_, err = runCLI(t, db, "search", "--user", "carol", "--json")
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)

	out, err = runCLI(t, db, "credits", "show", "--user", "carol")
	require.NoError(t, err)
	assert.Equal(t, "carol: 0 credits remaining\n", out)
}

func TestSearchRejectsBadPrice(t *testing.T) {
	db := filepath.Join(t.TempDir(), "ledger.db")
	_, err := runCLI(t, db, "search", "--user", "dave", "--price-min", "cheap")
	assert.ErrorContains(t, err, "--price-min")
}

func TestSearchRequiresUser(t *testing.T) {
	t.Setenv("CARSEARCH_USER", "")
	db := filepath.Join(t.TempDir(), "ledger.db")
	_, err := runCLI(t, db, "search")
	assert.Error(t, err)
}

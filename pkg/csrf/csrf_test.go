package csrf_test

import (
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/altura-labs/secgate/pkg/csrf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) *csrf.Manager {
	t.Helper()
	return csrf.NewManager(csrf.NewMemoryStore(), nil)
}

func TestInitialize_IssuesAndPersistsToken(t *testing.T) {
	manager := newManager(t)

	token, err := manager.Initialize()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(token), 32)
	assert.Equal(t, token, manager.Token())
}

func TestInitialize_IsIdempotent(t *testing.T) {
	manager := newManager(t)

	first, err := manager.Initialize()
	require.NoError(t, err)
	second, err := manager.Initialize()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestInitialize_ConcurrentCallsAgreeOnOneToken(t *testing.T) {
	manager := newManager(t)

	const callers = 32
	tokens := make([]string, callers)
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			token, err := manager.Initialize()
			assert.NoError(t, err)
			tokens[i] = token
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		assert.Equal(t, tokens[0], tokens[i])
	}
	assert.Equal(t, tokens[0], manager.Token())
}

func TestRegenerate_ReplacesToken(t *testing.T) {
	manager := newManager(t)

	first, err := manager.Initialize()
	require.NoError(t, err)

	second, err := manager.Regenerate()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, second, manager.Token())

	// The old token no longer validates.
	assert.False(t, manager.Validate(first, ""))
	assert.True(t, manager.Validate(second, ""))
}

func TestValidate_DoubleSubmit(t *testing.T) {
	seq := 0
	manager := csrf.NewManager(csrf.NewMemoryStore(), &csrf.ManagerOpts{
		Generate: func() (string, error) {
			seq++
			return fmt.Sprintf("token-%d", seq), nil
		},
	})
	_, err := manager.Initialize()
	require.NoError(t, err)

	tests := []struct {
		name     string
		header   string
		cookie   string
		expected bool
	}{
		{name: "header matches, no cookie supplied", header: "token-1", cookie: "", expected: true},
		{name: "all three agree", header: "token-1", cookie: "token-1", expected: true},
		{name: "cookie mismatch", header: "token-1", cookie: "xyz", expected: false},
		{name: "header mismatch", header: "other", cookie: "token-1", expected: false},
		{name: "header absent", header: "", cookie: "token-1", expected: false},
		{name: "both mismatch", header: "a", cookie: "b", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, manager.Validate(tt.header, tt.cookie))
		})
	}
}

func TestValidate_FailsWithoutCachedToken(t *testing.T) {
	manager := newManager(t)
	assert.False(t, manager.Validate("anything", "anything"))
}

func TestAddHeaders(t *testing.T) {
	manager := newManager(t)

	headers := map[string]string{"Content-Type": "application/json"}
	manager.AddHeaders(headers)
	_, present := headers[csrf.HeaderName]
	assert.False(t, present, "no token issued yet, header must not be set")

	token, err := manager.Initialize()
	require.NoError(t, err)
	manager.AddHeaders(headers)
	assert.Equal(t, token, headers[csrf.HeaderName])
	assert.Equal(t, "application/json", headers["Content-Type"])
}

func TestRequireToken(t *testing.T) {
	manager := newManager(t)

	_, err := manager.RequireToken()
	assert.ErrorIs(t, err, csrf.ErrTokenNotAvailable)

	issued, err := manager.Initialize()
	require.NoError(t, err)

	token, err := manager.RequireToken()
	require.NoError(t, err)
	assert.Equal(t, issued, token)
}

func TestClear_InvalidatesToken(t *testing.T) {
	manager := newManager(t)

	token, err := manager.Initialize()
	require.NoError(t, err)
	require.True(t, manager.Validate(token, token))

	manager.Clear()
	assert.Empty(t, manager.Token())
	assert.False(t, manager.Validate(token, token))
}

func TestCookie_Attributes(t *testing.T) {
	manager := newManager(t)

	_, err := manager.Cookie()
	assert.ErrorIs(t, err, csrf.ErrTokenNotAvailable)

	token, err := manager.Initialize()
	require.NoError(t, err)

	cookie, err := manager.Cookie()
	require.NoError(t, err)
	assert.Equal(t, csrf.CookieName, cookie.Name)
	assert.Equal(t, token, cookie.Value)
	assert.Equal(t, "/", cookie.Path)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
}

func TestConcurrentRegenerateDoesNotCorruptToken(t *testing.T) {
	manager := newManager(t)
	_, err := manager.Initialize()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = manager.Regenerate()
		}()
		go func() {
			defer wg.Done()
			_ = manager.Token()
		}()
	}
	wg.Wait()

	// Last writer wins; the stored value must still be a full token.
	final := manager.Token()
	assert.GreaterOrEqual(t, len(final), 32)
	assert.True(t, manager.Validate(final, final))
}

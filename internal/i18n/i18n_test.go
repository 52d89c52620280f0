package i18n

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestT(t *testing.T) {
	n, err := Init("en")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ctx := context.Background()
	assert.Equal(t, "Choose leave type:", T(ctx, "menu_title"))

	idCtx := WithLocale(ctx, "id")
	assert.Equal(t, "id", LocaleFromContext(idCtx))
	assert.Equal(t, "✅ Budi izin sebat selama 10 menit.",
		T(idCtx, "leave_started", map[string]any{"Name": "Budi", "Category": "sebat", "Minutes": 10}))

	assert.Equal(t, "Choose leave type:", T(WithLocale(ctx, "fr"), "menu_title"), "falls back to default")
	assert.Equal(t, "no_such_message", T(ctx, "no_such_message"))
}

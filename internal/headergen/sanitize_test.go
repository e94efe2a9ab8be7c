package headergen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	for _, tt := range []struct {
		name string
		in   string
		want string
	}{
		{"plain", "MtObject", "MtObject"},
		{"scoped", "app::cFoo", "app_cFoo"},
		{"template", "Vec<float>", "Vec_float"},
		{"template nested", "Map<Key, Value>", "Map_Key_Value"},
		{"punctuation", "cFoo*Bar", "cFoo_Bar"},
		{"kept charset", "Mt-Obj.v2", "Mt-Obj.v2"},
		{"empty", "", "unnamed"},
		{"only separators", "::::", "unnamed"},
		{"leading trailing", "_weird_", "weird"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSanitizeTruncates(t *testing.T) {
	long := strings.Repeat("a", 150) + "::" + strings.Repeat("b", 150)
	got := Sanitize(long)
	require.Len(t, got, 200)
	require.False(t, strings.HasSuffix(got, "_"))
}

func TestHeaderFileName(t *testing.T) {
	require.Equal(t, "MtObject.h", HeaderFileName("MtObject", ""))
	require.Equal(t, "app_cFoo_hierarchy.h", HeaderFileName("app::cFoo", "hierarchy"))
}

func TestGuardMacro(t *testing.T) {
	require.Equal(t, "WIDGET_H", guardMacro("Widget", "_H"))
	require.Equal(t, "APP_CFOO_HIERARCHY_H", guardMacro("app::cFoo", "_HIERARCHY_H"))
}

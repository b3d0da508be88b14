package cache

import (
	"strings"
	"testing"
)

func joinWithSeparator(parts ...string) string {
	return strings.Join(parts, KeySeparator)
}

type roleCode string

func (r roleCode) String() string { return "role-" + string(r) }

func TestDefaultKeySerializer_PermissionKeys(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	tests := []struct {
		name   string
		prefix string
		args   []any
		want   string
	}{
		{
			name:   "no args",
			prefix: "stats",
			want:   "stats",
		},
		{
			name:   "user id",
			prefix: "userPermissions",
			args:   []any{int64(42)},
			want:   "userPermissions:42",
		},
		{
			name:   "prefix with trailing separator",
			prefix: "userPermissions:",
			args:   []any{42},
			want:   "userPermissions:42",
		},
		{
			name:   "user and code",
			prefix: "permissionCheck:",
			args:   []any{42, "view_students"},
			want:   "permissionCheck:42:view_students",
		},
		{
			name:   "path keeps its slashes",
			prefix: "pathPermission:",
			args:   []any{7, "/students/list"},
			want:   "pathPermission:7:/students/list",
		},
		{
			name:   "stringer",
			prefix: "rolePermissions",
			args:   []any{roleCode("teacher")},
			want:   "rolePermissions:role-teacher",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := serializer.SerializeKey(tt.prefix, tt.args...)
			if got != tt.want {
				t.Errorf("SerializeKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefaultKeySerializer_Composite(t *testing.T) {
	serializer := NewDefaultKeySerializer()
	value := 42

	type filter struct {
		Center string `json:"center"`
		Page   int    `json:"page"`
	}

	tests := []struct {
		name string
		args []any
		want string
	}{
		{name: "nil", args: []any{nil}, want: joinWithSeparator("k", "nil")},
		{name: "nil pointer", args: []any{(*int)(nil)}, want: joinWithSeparator("k", "nil")},
		{name: "pointer", args: []any{&value}, want: joinWithSeparator("k", "42")},
		{name: "slice", args: []any{[]int{1, 2, 3}}, want: joinWithSeparator("k", "1,2,3")},
		{name: "array", args: []any{[2]string{"a", "b"}}, want: joinWithSeparator("k", "a,b")},
		{name: "map sorted", args: []any{map[string]int{"b": 2, "a": 1}}, want: joinWithSeparator("k", "a=1,b=2")},
		{name: "struct as json", args: []any{filter{Center: "task", Page: 2}}, want: joinWithSeparator("k", `{"center":"task","page":2}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := serializer.SerializeKey("k", tt.args...)
			if got != tt.want {
				t.Errorf("SerializeKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefaultKeySerializer_NoProcessLocalData(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	a := serializer.SerializeKey("k", func() {})
	b := serializer.SerializeKey("k", func() {})
	if a != b {
		t.Errorf("function args must not leak addresses: %v != %v", a, b)
	}
	if strings.Contains(a, "0x") {
		t.Errorf("unexpected pointer in key %v", a)
	}
}

func BenchmarkDefaultKeySerializer(b *testing.B) {
	serializer := NewDefaultKeySerializer()
	args := []any{42, "view_students"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		serializer.SerializeKey("permissionCheck:", args...)
	}
}

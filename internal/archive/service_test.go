package archive

import "testing"

func TestObjectKey(t *testing.T) {
	cases := []struct {
		name    string
		user    string
		project string
		syncID  string
		want    string
	}{
		{"plain", "u1", "myproject", "s1", "u1/myproject/s1.json"},
		{"path separators flattened", "u1", "org/repo", "s1", "u1/org-repo/s1.json"},
		{"spaces flattened", "u1", "my project", "s1", "u1/my-project/s1.json"},
		{"empty project", "u1", "", "s1", "u1/project/s1.json"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ObjectKey(tc.user, tc.project, tc.syncID); got != tc.want {
				t.Errorf("ObjectKey() = %q, want %q", got, tc.want)
			}
		})
	}
}

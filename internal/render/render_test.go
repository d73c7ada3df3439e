package render

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"stack-keeper/internal/models"
)

func stackSource(overrides, environ map[string]string) Source {
	return NewSource(
		Layer{Name: "overrides", Values: overrides},
		Layer{Name: "environment", Values: environ},
	).WithPinnedHosts([]string{"MYSQL_HOST", "REDIS_HOST"}, "127.0.0.1").
		WithPortRewrites(models.PortRewrite{From: 80, To: 6380})
}

func TestRender_DefaultedAndBare(t *testing.T) {
	src := stackSource(map[string]string{"USER": "alice"}, map[string]string{"USER": "bob", "PORT": "9000"})

	tests := []struct {
		name string
		tmpl string
		want string
	}{
		{"override wins over environment", "user=${USER}", "user=alice"},
		{"environment layer", "port=${PORT}", "port=9000"},
		{"unresolved bare is emptied", "pw=${MISSING}", "pw="},
		{"default used when unset", "db=${DB_NAME:-rag_flow}", "db=rag_flow"},
		{"source wins over default", "port=${PORT:-80}", "port=9000"},
		{"empty default", "x=${NOPE:-}", "x="},
		{"nested default consumed as a whole", "a=${NOPE:-${USER}}", "a=alice"},
		{"nested defaulted default", "a=${NOPE:-${NADA:-z}} b=${NOPE:-${USER:-z}}", "a=z b=alice"},
		{"nested bare default unset", "a=${NOPE:-${NADA}}", "a="},
		{"doubly nested default", "a=${NOPE:-${NADA:-${NONE:-deep}}}", "a=deep"},
		{"no placeholders", "plain text $HOME {x}", "plain text $HOME {x}"},
		{"pinned bare", "h=${REDIS_HOST}", "h=127.0.0.1"},
		{"digits in name", "${V2:-two}", "two"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.tmpl, src))
		})
	}
}

func TestMissing(t *testing.T) {
	src := stackSource(map[string]string{"USER": "alice", "EMPTY": ""}, nil)

	assert.Equal(t, []string{"PASSWORD", "TOKEN"},
		Missing("u=${USER} p=${PASSWORD} t=${TOKEN} again=${PASSWORD} e=${EMPTY} h=${MYSQL_HOST}", src))
	assert.Empty(t, Missing("db=${DB_NAME:-rag} x=${NOPE:-${USER}}", src))
	assert.Equal(t, []string{"INNER"}, Missing("x=${NOPE:-${INNER}}", src))
}

func TestRender_UnclosedDefaultStaysUnresolved(t *testing.T) {
	out := Render("host=${MISSING:-oops", NewSource())
	assert.True(t, HasUnresolved(out))
}

func TestRender_HostPinnedOverDefaultAndOverride(t *testing.T) {
	src := stackSource(map[string]string{"MYSQL_HOST": "db.example"}, map[string]string{"MYSQL_HOST": "mysql"})
	assert.Equal(t, "127.0.0.1", Render("${MYSQL_HOST:-mysql}", src))
}

func TestRender_PortRewrite(t *testing.T) {
	src := stackSource(nil, nil)

	assert.Equal(t, "http://127.0.0.1:6380", Render("http://${REDIS_HOST:-redis}:80", src))
	assert.Equal(t, "http://127.0.0.1:6380/api", Render("http://127.0.0.1:80/api", src))
	// 8080 不是 80
	assert.Equal(t, "http://127.0.0.1:8080", Render("http://127.0.0.1:8080", src))
	assert.Equal(t, "http://10.0.0.1:80", Render("http://10.0.0.1:80", src))
}

func TestRender_PropertyDeterministic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		vars := rapid.MapOf(
			rapid.StringMatching(`[A-Z_][A-Z0-9_]{0,6}`),
			rapid.StringMatching(`[a-z0-9.:/]{0,10}`),
		).Draw(rt, "vars")
		tmpl := rapid.StringMatching(`([a-z :/]|\$\{[A-Z_]{1,4}\}|\$\{[A-Z_]{1,4}:-[a-z]{0,4}\}){0,8}`).Draw(rt, "tmpl")

		src := stackSource(vars, nil)
		require.Equal(rt, Render(tmpl, src), Render(tmpl, src))
	})
}

func TestRender_PropertyHostPinned(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		overrides := map[string]string{
			"MYSQL_HOST": rapid.StringMatching(`[a-z0-9.]{0,12}`).Draw(rt, "override"),
		}
		environ := map[string]string{
			"MYSQL_HOST": rapid.StringMatching(`[a-z0-9.]{0,12}`).Draw(rt, "env"),
		}
		fallback := rapid.StringMatching(`[a-z]{1,8}`).Draw(rt, "default")

		out := Render("${MYSQL_HOST:-"+fallback+"}", stackSource(overrides, environ))
		require.Equal(rt, "127.0.0.1", out)
	})
}

func TestArtifact_StaleAndRefresh(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "service_conf.yaml.template")
	out := filepath.Join(dir, "conf", "service_conf.yaml")
	require.NoError(t, os.WriteFile(tmpl, []byte("mysql:\n  host: ${MYSQL_HOST:-mysql}\n  name: ${DB:-rag}\n"), 0644))

	a := NewArtifact(models.ArtifactSpecification{Name: "service_conf", Template: tmpl, Output: out})
	src := stackSource(nil, nil)

	stale, reason := a.Stale()
	assert.True(t, stale)
	assert.Equal(t, "missing", reason)

	rewritten, err := a.Refresh(src)
	require.NoError(t, err)
	assert.True(t, rewritten)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "mysql:\n  host: 127.0.0.1\n  name: rag\n", string(data))

	// 已是最新，不再重写
	rewritten, err = a.Refresh(src)
	require.NoError(t, err)
	assert.False(t, rewritten)
}

func TestArtifact_UnresolvedIsAlwaysStale(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "t.template")
	out := filepath.Join(dir, "t.conf")
	require.NoError(t, os.WriteFile(tmpl, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(out, []byte("value=${LEFTOVER}"), 0644))

	// 输出比模板新也一样
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(out, future, future))

	stale, reason := NewArtifact(models.ArtifactSpecification{Template: tmpl, Output: out}).Stale()
	assert.True(t, stale)
	assert.Equal(t, "unresolved placeholder", reason)
}

func TestArtifact_TemplateNewer(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "t.template")
	out := filepath.Join(dir, "t.conf")
	require.NoError(t, os.WriteFile(out, []byte("ok"), 0644))
	require.NoError(t, os.WriteFile(tmpl, []byte("ok"), 0644))

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(out, past, past))

	stale, reason := NewArtifact(models.ArtifactSpecification{Template: tmpl, Output: out}).Stale()
	assert.True(t, stale)
	assert.Equal(t, "template newer", reason)
}

func TestArtifact_MissingTemplate(t *testing.T) {
	dir := t.TempDir()
	a := NewArtifact(models.ArtifactSpecification{
		Template: filepath.Join(dir, "absent.template"),
		Output:   filepath.Join(dir, "out.conf"),
	})

	_, err := a.Refresh(NewSource())
	var terr *models.TemplateError
	require.ErrorAs(t, err, &terr)
	assert.NoFileExists(t, a.Output)
}

func TestWriteFileAtomic_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.conf")
	require.NoError(t, WriteFileAtomic(path, []byte("one"), 0600))
	require.NoError(t, WriteFileAtomic(path, []byte("two"), 0600))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestWriteFileAtomic_CreatesParentAndKeepsMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nginx", "conf.d", "ragflow.conf")
	require.NoError(t, WriteFileAtomic(path, []byte("server {}\n"), 0664))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "server {}\n", string(data))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0664), info.Mode().Perm(), "mode is not narrowed by the umask")
}

func TestArtifact_NestedDefaultRendersFresh(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "service_conf.yaml.template")
	require.NoError(t, os.WriteFile(tmpl, []byte("port: ${SVR_PORT:-${HTTP_PORT:-9380}}\n"), 0644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(tmpl, old, old))
	a := NewArtifact(models.ArtifactSpecification{Name: "service_conf", Template: tmpl, Output: filepath.Join(dir, "service_conf.yaml")})

	rewritten, err := a.Refresh(NewSource())
	require.NoError(t, err)
	assert.True(t, rewritten)
	data, err := os.ReadFile(a.Output)
	require.NoError(t, err)
	assert.Equal(t, "port: 9380\n", string(data))

	stale, reason := a.Stale()
	assert.False(t, stale, reason)
}

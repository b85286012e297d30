// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package processor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/epgsnoop/internal/channels"
	"github.com/ManuGH/epgsnoop/internal/persistence/sqlite"
	"github.com/ManuGH/epgsnoop/internal/program"
)

var (
	tv1      = &channels.Channel{ID: "1001", XMLTVID: "tv1.sky.co.nz", Name: "TV ONE"}
	bbcWorld = &channels.Channel{ID: "1060", XMLTVID: "bbc-world.sky.co.nz", Name: "BBC World"}
	base     = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
)

func prog(ch *channels.Channel, title, desc string, start time.Time, d time.Duration) *program.Program {
	p := program.New(ch.ID)
	p.Channel = ch
	p.Title = title
	p.Description = desc
	p.SetStartTime(start)
	p.SetDurationValue(d)
	return p
}

func valid(title, desc string) *program.Program {
	return prog(tv1, title, desc, base, time.Hour)
}

// recorder remembers every program it was shown.
type recorder struct {
	name string
	seen []*program.Program
}

func (r *recorder) Name() string               { return r.name }
func (r *recorder) Process(p *program.Program) { r.seen = append(r.seen, p) }

// appender queues one insert and one delete per pass.
type appender struct {
	recorder
	insert *program.Program
	delete *program.Program
}

func (a *appender) Finish(_ []*program.Program, b *Batch) {
	b.Insert(a.insert)
	b.Delete(a.delete)
}

type titleSetter string

func (titleSetter) Name() string                 { return "title_setter" }
func (t titleSetter) Process(p *program.Program) { p.Title = string(t) }

func TestPipelineVisitsOnlyValidPrograms(t *testing.T) {
	good := valid("News", "")
	noTitle := valid("", "")
	noChannel := program.New("9")
	noChannel.Title = "Orphan"
	noChannel.SetStartTime(base)
	noChannel.SetDurationValue(time.Hour)

	rec := &recorder{name: "rec"}
	out, err := New(Active(rec)).Run(context.Background(), []*program.Program{good, noTitle, noChannel})
	require.NoError(t, err)

	assert.Equal(t, []*program.Program{good}, rec.seen)
	assert.Len(t, out, 3, "invalid programs stay in the collection")
}

func TestPipelineRunsInOrder(t *testing.T) {
	p := valid("Original", "")
	rec := &recorder{name: "rec"}

	_, err := New(Active(titleSetter("Changed")), Active(rec)).Run(context.Background(), []*program.Program{p})
	require.NoError(t, err)
	require.Len(t, rec.seen, 1)
	assert.Equal(t, "Changed", rec.seen[0].Title)
}

func TestPipelineSkipsInactive(t *testing.T) {
	p := valid("Original", "")
	rec := &recorder{name: "rec"}

	pl := New(Inactive("title_setter", "disabled"), Active(rec))
	out, err := pl.Run(context.Background(), []*program.Program{p})
	require.NoError(t, err)
	assert.Equal(t, "Original", out[0].Title)
	assert.Len(t, rec.seen, 1)
}

func TestBatchAppliedAfterPass(t *testing.T) {
	a := valid("A", "")
	b := valid("B", "")
	inserted := valid("Inserted", "")

	ap := &appender{recorder: recorder{name: "appender"}, insert: inserted, delete: a}
	out, err := New(Active(ap)).Run(context.Background(), []*program.Program{a, b})
	require.NoError(t, err)

	assert.Equal(t, []*program.Program{a, b}, ap.seen, "inserted program is not visited in the same pass")
	assert.Equal(t, []*program.Program{b, inserted}, out)
}

func TestBatchApply(t *testing.T) {
	a, b, c := valid("A", ""), valid("B", ""), valid("C", "")
	var batch Batch
	assert.Equal(t, []*program.Program{a}, batch.Apply([]*program.Program{a}))

	batch.Delete(b)
	batch.Delete(valid("not present", ""))
	batch.Insert(c)
	batch.Insert(b)
	assert.Equal(t, 2, batch.Inserts())
	assert.Equal(t, 2, batch.Deletes())

	out := batch.Apply([]*program.Program{a, b})
	assert.Equal(t, []*program.Program{a, c, b}, out)
	assert.Zero(t, batch.Inserts())

	batch.Delete(valid("foreign 1", ""))
	batch.Delete(valid("foreign 2", ""))
	assert.Equal(t, []*program.Program{a}, batch.Apply([]*program.Program{a}))
	assert.Zero(t, batch.Deletes())
}

func TestPipelineCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &recorder{name: "rec"}
	_, err := New(Active(rec)).Run(ctx, []*program.Program{valid("A", "")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.seen)
}

func TestBuild(t *testing.T) {
	pl, err := Build(context.Background(), []string{"strip_html", "category_db", "channel_merge"}, Config{})
	require.NoError(t, err)
	require.Len(t, pl.Outcomes(), 3)

	_, ok := pl.Outcomes()[0].Processor()
	assert.True(t, ok)
	_, ok = pl.Outcomes()[1].Processor()
	assert.False(t, ok)
	assert.Contains(t, pl.Outcomes()[1].Reason(), "categoryDb")
	assert.NoError(t, pl.Close())

	_, err = Build(context.Background(), []string{"hd", "bogus"}, Config{})
	assert.ErrorIs(t, err, ErrUnknownProcessor)
	assert.Contains(t, err.Error(), "bogus")
}

func TestRegistryCoversDefaultOrder(t *testing.T) {
	for _, n := range DefaultOrder {
		assert.True(t, Known(n), n)
	}
	assert.Contains(t, Names(), "normalize_title")
}

func TestCategoryDB(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "categories.db")

	db, err := sqlite.Open(ctx, path, sqlite.DefaultConfig())
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, categorySchema)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO categories (title, cat_type, cat) VALUES ('Shortland Street', 'series', 'Soap')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	buildCtx, cancel := context.WithCancel(ctx)
	o := NewCategoryDB(buildCtx, Config{CategoryDB: path})
	cancel()
	proc, ok := o.Processor()
	require.True(t, ok, o.Reason())

	hit := valid("shortland street", "")
	miss := valid("Unknown", "")
	pl := New(o)
	_, err = pl.Run(ctx, []*program.Program{hit, miss})
	require.NoError(t, err)
	require.NoError(t, pl.Close())

	assert.Equal(t, "category_db", proc.Name())
	assert.Equal(t, "series", hit.CategoryType)
	assert.Equal(t, "Soap", hit.CategoryName)
	assert.Empty(t, miss.CategoryType)
}

func TestCategoryDBInactiveOnBadPath(t *testing.T) {
	o := NewCategoryDB(context.Background(), Config{CategoryDB: filepath.Join(t.TempDir(), "missing", "dir", "x.db")})
	_, ok := o.Processor()
	assert.False(t, ok)
	assert.NotEmpty(t, o.Reason())
}

func TestSearchReplaceTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"search": "^The Simpsons \\(\\d+\\)$", "replace": "The Simpsons"},
			{"search": "^(.*), The$", "replace": "The \\1"}
		]`))
	}))
	defer srv.Close()

	o := NewSearchReplaceTitle(context.Background(), Config{SearchReplaceURL: srv.URL})
	proc, ok := o.Processor()
	require.True(t, ok, o.Reason())

	a := valid("The Simpsons (12)", "")
	b := valid("Bill, The", "")
	proc.Process(a)
	proc.Process(b)
	assert.Equal(t, "The Simpsons", a.Title)
	assert.Equal(t, "The Bill", b.Title)

	sr, err := CompileReplacements([]Replacement{
		{Search: `^Cash$`, Replace: `Cash $5 Million`},
		{Search: `^(\w+) vs (?P<other>\w+)$`, Replace: `\g<other> v \g<1>`},
		{Search: `^Backslash$`, Replace: `Back\\slash`},
	})
	require.NoError(t, err)
	for in, want := range map[string]string{
		"Cash":               "Cash $5 Million",
		"Crusaders vs Blues": "Blues v Crusaders",
		"Backslash":          `Back\slash`,
	} {
		p := valid(in, "")
		sr.Process(p)
		assert.Equal(t, want, p.Title, in)
	}
}

func TestSearchReplaceTitleInactive(t *testing.T) {
	o := NewSearchReplaceTitle(context.Background(), Config{})
	_, ok := o.Processor()
	assert.False(t, ok)

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer broken.Close()
	o = NewSearchReplaceTitle(context.Background(), Config{SearchReplaceURL: broken.URL})
	_, ok = o.Processor()
	assert.False(t, ok)
	assert.Contains(t, o.Reason(), "JSON parse failed")

	missing := httptest.NewServer(http.NotFoundHandler())
	defer missing.Close()
	o = NewSearchReplaceTitle(context.Background(), Config{SearchReplaceURL: missing.URL})
	_, ok = o.Processor()
	assert.False(t, ok)
	assert.Contains(t, o.Reason(), "fetching data failed")

	_, err := CompileReplacements([]Replacement{{Search: "(", Replace: ""}})
	assert.Error(t, err)
}

func TestChannelMerge(t *testing.T) {
	slot := prog(tv1, "BBC World 2024", "", base, 3*time.Hour)
	other := prog(tv1, "Breakfast", "", base.Add(-2*time.Hour), 2*time.Hour)
	inside1 := prog(bbcWorld, "World News", "", base.Add(30*time.Minute), 30*time.Minute)
	inside2 := prog(bbcWorld, "HARDtalk", "", base.Add(time.Hour), 30*time.Minute)
	edge := prog(bbcWorld, "Starts with slot", "", base, 30*time.Minute)
	outside := prog(bbcWorld, "Late News", "", base.Add(4*time.Hour), 30*time.Minute)

	o := NewChannelMerge(context.Background(), Config{MergeHost: tv1.XMLTVID, MergeGuest: bbcWorld.XMLTVID})
	require.NotNil(t, o.proc, o.Reason())

	in := []*program.Program{slot, other, inside1, inside2, edge, outside}
	out, err := New(o).Run(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, out, 7)
	assert.NotContains(t, out, slot)
	assert.Equal(t, []*program.Program{other, inside1, inside2, edge, outside}, out[:5])

	for i, want := range []*program.Program{inside1, inside2} {
		got := out[5+i]
		assert.NotSame(t, want, got)
		assert.Equal(t, want.Title, got.Title)
		assert.Same(t, tv1, got.Channel)
		wantStart, _ := want.Start()
		gotStart, _ := got.Start()
		assert.True(t, wantStart.Equal(gotStart))
	}
	assert.Same(t, bbcWorld, inside1.Channel, "guest programs keep their channel")
}

func TestChannelMergeInactive(t *testing.T) {
	o := NewChannelMerge(context.Background(), Config{MergeHost: "a"})
	_, ok := o.Processor()
	assert.False(t, ok)

	o = NewChannelMerge(context.Background(), Config{MergeHost: "a", MergeGuest: "b", MergeTitlePattern: "("})
	_, ok = o.Processor()
	assert.False(t, ok)
}

package cache

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/ingamehud/internal/model"
)

type CacheSuite struct {
	suite.Suite
	cache *Cache
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheSuite))
}

func (s *CacheSuite) SetupTest() {
	s.cache = New("en")
}

func (s *CacheSuite) TestGetMissing() {
	_, ok := s.cache.Get("100")
	s.False(ok)
}

func (s *CacheSuite) TestGetOrDefaultInsertsDefaults() {
	settings := s.cache.GetOrDefault("100")

	s.Equal(model.DefaultSettings("100", "en"), settings)
	s.True(s.cache.Contains("100"))
	s.Equal(1, s.cache.Len())
}

func (s *CacheSuite) TestGetOrDefaultKeepsExisting() {
	existing := model.DefaultSettings("100", "en")
	existing.HUDEnabled = false
	s.cache.Put(existing)

	s.False(s.cache.GetOrDefault("100").HUDEnabled)
}

func (s *CacheSuite) TestPutReplacesEntry() {
	s.cache.Put(model.DefaultSettings("100", "en"))
	updated := model.DefaultSettings("100", "zh")
	s.cache.Put(updated)

	got, ok := s.cache.Get("100")
	s.True(ok)
	s.Equal("zh", got.Language)
	s.Equal(1, s.cache.Len())
}

func (s *CacheSuite) TestEntriesAreNotAliased() {
	settings := model.DefaultSettings("100", "en")
	settings.Custom = map[string]string{model.CustomDataDisplay1: "a"}
	s.cache.Put(settings)

	settings.Custom[model.CustomDataDisplay1] = "changed"
	got, _ := s.cache.Get("100")
	s.Equal("a", got.Custom[model.CustomDataDisplay1])

	got.Custom[model.CustomDataDisplay1] = "changed again"
	again, _ := s.cache.Get("100")
	s.Equal("a", again.Custom[model.CustomDataDisplay1])
}

func (s *CacheSuite) TestRemove() {
	s.cache.Put(model.DefaultSettings("100", "en"))

	s.True(s.cache.Remove("100"))
	s.False(s.cache.Remove("100"))
	s.Equal(0, s.cache.Len())
}

func (s *CacheSuite) TestForEachAndSnapshotAreOrdered() {
	for _, id := range []model.PlayerID{"3", "1", "2"} {
		s.cache.Put(model.DefaultSettings(id, "en"))
	}

	var seen []model.PlayerID
	s.cache.ForEach(func(st model.PlayerSettings) { seen = append(seen, st.ID) })
	s.Equal([]model.PlayerID{"1", "2", "3"}, seen)

	snap := s.cache.Snapshot()
	s.Len(snap, 3)
	s.Equal(model.PlayerID("1"), snap[0].ID)
}

func (s *CacheSuite) TestClear() {
	s.cache.Put(model.DefaultSettings("1", "en"))
	s.cache.Put(model.DefaultSettings("2", "en"))

	s.cache.Clear()
	s.Equal(0, s.cache.Len())
}

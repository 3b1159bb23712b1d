package resource

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kasuganosora/worldsrv/game/item"
)

// Quest expedition defaults when a definition leaves a field out.
const (
	defaultLevelMin  = 0
	defaultLevelMax  = 200
	defaultUserCount = 30
)

// QuestExpedition describes the expedition attached to a party quest.
type QuestExpedition struct {
	QuestID   int32  `json:"quest_id"`
	Name      string `json:"name"`
	LevelMin  int16  `json:"level_min"`
	LevelMax  int16  `json:"level_max"`
	UserCount int    `json:"user_count"`
}

// questExpeditionJSON keeps optional fields distinguishable from zero.
type questExpeditionJSON struct {
	QuestID   int32  `json:"quest_id"`
	Name      string `json:"name"`
	LevelMin  *int16 `json:"level_min"`
	LevelMax  *int16 `json:"level_max"`
	UserCount *int   `json:"user_count"`
}

func (q *questExpeditionJSON) resolve() *QuestExpedition {
	out := &QuestExpedition{
		QuestID:   q.QuestID,
		Name:      q.Name,
		LevelMin:  defaultLevelMin,
		LevelMax:  defaultLevelMax,
		UserCount: defaultUserCount,
	}
	if q.LevelMin != nil {
		out.LevelMin = *q.LevelMin
	}
	if q.LevelMax != nil {
		out.LevelMax = *q.LevelMax
	}
	if q.UserCount != nil {
		out.UserCount = *q.UserCount
	}
	return out
}

// Loader holds the static game data the world server needs: item metadata
// (items.json) and expedition definitions (expeditions.json).
type Loader struct {
	DataPath string

	Items       map[int32]*item.Info
	Expeditions map[int32]*QuestExpedition
}

// NewLoader creates a Loader for the given data directory.
func NewLoader(dataPath string) *Loader {
	return &Loader{
		DataPath:    dataPath,
		Items:       make(map[int32]*item.Info),
		Expeditions: make(map[int32]*QuestExpedition),
	}
}

// Load reads all data files.
func (rl *Loader) Load() error {
	loaders := []func() error{
		rl.loadItems,
		rl.loadExpeditions,
	}
	for _, fn := range loaders {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

func (rl *Loader) path(file string) string {
	return filepath.Join(rl.DataPath, file)
}

func loadJSONArray[T any](path string) ([]*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("resource: read %s: %w", path, err)
	}
	var arr []*T
	if err := json.Unmarshal(data, &arr); err != nil {
		return nil, fmt.Errorf("resource: parse %s: %w", path, err)
	}
	return arr, nil
}

func (rl *Loader) loadItems() error {
	arr, err := loadJSONArray[item.Info](rl.path("items.json"))
	if err != nil {
		return err
	}
	items := make(map[int32]*item.Info, len(arr))
	for _, info := range arr {
		if info == nil {
			continue
		}
		if _, dup := items[info.ItemID]; dup {
			return fmt.Errorf("resource: items.json: duplicate item %d", info.ItemID)
		}
		items[info.ItemID] = info
	}
	rl.Items = items
	return nil
}

func (rl *Loader) loadExpeditions() error {
	arr, err := loadJSONArray[questExpeditionJSON](rl.path("expeditions.json"))
	if err != nil {
		return err
	}
	exps := make(map[int32]*QuestExpedition, len(arr))
	for _, raw := range arr {
		if raw == nil {
			continue
		}
		q := raw.resolve()
		if q.LevelMin > q.LevelMax {
			return fmt.Errorf("resource: expeditions.json: quest %d: level_min %d > level_max %d",
				q.QuestID, q.LevelMin, q.LevelMax)
		}
		exps[q.QuestID] = q
	}
	rl.Expeditions = exps
	return nil
}

// ItemInfo returns the metadata of itemID.
func (rl *Loader) ItemInfo(itemID int32) (*item.Info, bool) {
	info, ok := rl.Items[itemID]
	return info, ok
}

// QuestExpedition returns the expedition definition of questID.
func (rl *Loader) QuestExpedition(questID int32) (*QuestExpedition, bool) {
	q, ok := rl.Expeditions[questID]
	return q, ok
}

package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// ErrMalformedPayload reports a schedule document that lacks its category
// structure entirely.
var ErrMalformedPayload = errors.New("schedule: malformed payload")

// GrizzcoRandomID is the feed identifier of the rare random weapon slot.
const GrizzcoRandomID = "747937841598fff7"

var categoryKeys = []struct {
	key      string
	category Category
}{
	{"regularSchedules", CategoryRegular},
	{"bigRunSchedules", CategoryBigRun},
	{"teamContestSchedules", CategoryEggstraWork},
}

type container struct {
	Nodes []json.RawMessage `json:"nodes"`
}

type rawNode struct {
	StartTime string      `json:"startTime"`
	EndTime   string      `json:"endTime"`
	Setting   *rawSetting `json:"setting"`
}

type rawSetting struct {
	CoopStage *struct {
		Name *string `json:"name"`
	} `json:"coopStage"`
	Boss *struct {
		Name *string `json:"name"`
	} `json:"boss"`
	Weapons []rawWeapon `json:"weapons"`
}

type rawWeapon struct {
	Name *string `json:"name"`
	ID   string  `json:"__splatoon3ink_id"`
}

// Normalizer turns raw schedule documents into ordered rotations.
type Normalizer struct {
	loc    *time.Location
	now    func() time.Time
	logger zerolog.Logger
}

// NewNormalizer builds a normalizer rendering times in loc.
func NewNormalizer(loc *time.Location, now func() time.Time, logger zerolog.Logger) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Normalizer{
		loc:    loc,
		now:    now,
		logger: logger.With().Str("component", "normalizer").Logger(),
	}
}

// Normalize flattens every category into one batch sorted by time until
// start. Broken nodes are dropped individually.
func (n *Normalizer) Normalize(raw json.RawMessage) ([]Rotation, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	now := n.now()
	var rotations []Rotation
	for _, entry := range categoryKeys {
		body, ok := doc[entry.key]
		if !ok {
			return nil, fmt.Errorf("%w: missing %s", ErrMalformedPayload, entry.key)
		}

		var c container
		if err := json.Unmarshal(body, &c); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, entry.key, err)
		}

		for i, nodeRaw := range c.Nodes {
			rotation, err := n.node(entry.category, nodeRaw, now)
			if err != nil {
				n.logger.Warn().
					Err(err).
					Str("category", string(entry.category)).
					Int("index", i).
					Msg("dropping unreadable rotation")
				continue
			}
			rotations = append(rotations, rotation)
		}
	}

	sort.SliceStable(rotations, func(i, j int) bool {
		return rotations[i].UntilStart < rotations[j].UntilStart
	})
	return rotations, nil
}

func (n *Normalizer) node(category Category, raw json.RawMessage, now time.Time) (Rotation, error) {
	var node rawNode
	if err := json.Unmarshal(raw, &node); err != nil {
		return Rotation{}, fmt.Errorf("decode node: %w", err)
	}

	start, err := time.Parse(time.RFC3339, node.StartTime)
	if err != nil {
		return Rotation{}, fmt.Errorf("startTime: %w", err)
	}
	end, err := time.Parse(time.RFC3339, node.EndTime)
	if err != nil {
		return Rotation{}, fmt.Errorf("endTime: %w", err)
	}

	setting := node.Setting
	switch {
	case setting == nil:
		return Rotation{}, errors.New("missing setting")
	case setting.CoopStage == nil:
		return Rotation{}, errors.New("missing coopStage")
	case setting.CoopStage.Name == nil || *setting.CoopStage.Name == "":
		return Rotation{}, errors.New("coopStage has no name")
	case setting.Boss == nil:
		return Rotation{}, errors.New("missing boss")
	case setting.Weapons == nil:
		return Rotation{}, errors.New("missing weapons")
	}

	boss := "Random"
	if setting.Boss.Name != nil {
		boss = *setting.Boss.Name
	}

	weapons := make([]string, 0, len(setting.Weapons))
	for i, w := range setting.Weapons {
		switch {
		case w.ID == GrizzcoRandomID:
			weapons = append(weapons, "Grizzco Random")
		case w.Name != nil:
			weapons = append(weapons, *w.Name)
		default:
			return Rotation{}, fmt.Errorf("weapon %d has no name", i)
		}
	}

	return Rotation{
		Category:   category,
		StartTime:  start.In(n.loc),
		EndTime:    end.In(n.loc),
		UntilStart: start.Sub(now),
		Stage:      *setting.CoopStage.Name,
		Boss:       boss,
		Weapons:    weapons,
	}, nil
}

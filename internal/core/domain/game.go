package domain

import "fmt"

type GameMode string

const (
	GamePlaying    GameMode = "playing"
	GameNotPlaying GameMode = "not-playing"
)

func ParseGameMode(s string) (GameMode, error) {
	switch m := GameMode(s); m {
	case GamePlaying, GameNotPlaying:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown game mode %q", ErrInvalid, s)
	}
}

func (m GameMode) Toggle() GameMode {
	if m == GamePlaying {
		return GameNotPlaying
	}
	return GamePlaying
}

// GameState is the singleton stored at gameState/global.
type GameState struct {
	Mode GameMode `json:"mode"`
}

// Settings is the singleton stored at settings/global.
type Settings struct {
	WallpaperURL string `json:"wallpaperUrl,omitempty"`
}

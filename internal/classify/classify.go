// Package classify assigns attributes to brushes and faces from the game's
// ordered glob rules.
package classify

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/brushforge/internal/gameconfig"
	"github.com/Faultbox/brushforge/internal/scene"
)

// Classify returns a copy of s with rule attributes applied. Brush rules
// are matched against the owning entity's classname and land in each
// face's Inherited set; face rules are matched against the face material
// or its surface flag names and land in Attributes.
//
// Within each rule list the first matching rule wins, except that an
// additive rule applies its attributes and lets evaluation continue.
func Classify(ctx context.Context, s *scene.Scene, game *gameconfig.Game, workers int) (*scene.Scene, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	out := s.Clone()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, e := range out.Entities {
		inherited := BrushAttributes(game.BrushRules, e.ClassName)
		for _, b := range e.Brushes {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				for i := range b.Faces {
					f := &b.Faces[i]
					f.Inherited = f.Inherited.With(inherited...)
					f.Attributes = f.Attributes.With(FaceAttributes(game, f)...)
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// BrushAttributes evaluates brush rules for an entity classname.
func BrushAttributes(rules []gameconfig.Rule, classname string) []string {
	return evaluate(rules, func(r *gameconfig.Rule) bool {
		return r.Matches(classname)
	})
}

// FaceAttributes evaluates face rules for one face.
func FaceAttributes(game *gameconfig.Game, f *scene.Face) []string {
	var flags []string
	if f.Surface != 0 {
		flags, _ = game.SurfaceFlagNames(f.Surface)
	}
	return evaluate(game.FaceRules, func(r *gameconfig.Rule) bool {
		switch r.Match {
		case gameconfig.MatchSurfaceFlag:
			for _, name := range flags {
				if r.Matches(name) {
					return true
				}
			}
			return false
		default:
			return r.Matches(f.Material)
		}
	})
}

func evaluate(rules []gameconfig.Rule, match func(*gameconfig.Rule) bool) []string {
	var attrs []string
	for i := range rules {
		r := &rules[i]
		if !match(r) {
			continue
		}
		attrs = append(attrs, r.Attributes...)
		if !r.Additive {
			break
		}
	}
	return attrs
}

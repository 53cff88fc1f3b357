package auth

import (
	"fmt"
	"io"
	"strings"
)

// KeyGuide tells a user where to get a source's key
type KeyGuide struct {
	Source    string
	SignupURL string
	Required  bool
	Note      string
}

var guides = []KeyGuide{
	{
		Source:    "wallhaven",
		SignupURL: "https://wallhaven.cc/settings/account",
		Note:      "Optional. Unlocks NSFW purity and your account's filters.",
	},
	{
		Source:    "unsplash",
		SignupURL: "https://unsplash.com/oauth/applications",
		Note:      "Optional. Without a key random images come from the public redirector.",
	},
	{
		Source:    "pixabay",
		SignupURL: "https://pixabay.com/api/docs/",
		Required:  true,
		Note:      "Shown on the API docs page once you are logged in.",
	},
	{
		Source:    "pexels",
		SignupURL: "https://www.pexels.com/api/new/",
		Required:  true,
		Note:      "Free. Sent in the Authorization header.",
	},
}

// KeyedSources lists every source that accepts an API key
func KeyedSources() []string {
	names := make([]string, len(guides))
	for i, g := range guides {
		names[i] = g.Source
	}
	return names
}

// GuideFor returns the key guide for a source
func GuideFor(source string) (KeyGuide, bool) {
	source = normalize(source)
	for _, g := range guides {
		if g.Source == source {
			return g, true
		}
	}
	return KeyGuide{}, false
}

// ShowKeyGuide writes where and how to get a key for source
func ShowKeyGuide(w io.Writer, source string) error {
	g, ok := GuideFor(source)
	if !ok {
		return fmt.Errorf("%s does not use an API key (keyed sources: %s)", source, strings.Join(KeyedSources(), ", "))
	}

	need := "optional"
	if g.Required {
		need = "required"
	}
	fmt.Fprintf(w, "%s API key (%s)\n", g.Source, need)
	fmt.Fprintf(w, "  Get one at: %s\n", g.SignupURL)
	fmt.Fprintf(w, "  %s\n", g.Note)
	fmt.Fprintf(w, "  Save it with: wallgrab keys set %s\n", g.Source)
	fmt.Fprintf(w, "  Or export %s\n", EnvVar(g.Source))
	return nil
}

package main

import (
	"flag"
	"log"

	"github.com/danmuck/emberctl/internal/config"
)

func main() {
	kind := flag.String("kind", config.KindProvider, "config kind: provider|tree")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing tree file")
	input := flag.String("input", "", "tree path for validation (defaults to cmd/emberctl/tree.toml)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		if *kind != config.KindTree {
			log.Fatalf("validate supports kind %q only; use emberctl validate for provider configs", config.KindTree)
		}
		path := *input
		if path == "" {
			path = "cmd/emberctl/tree.toml"
		}
		t, err := config.LoadTree(path)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated tree at %s (%d elements)", path, t.Len()-1)
		return
	}

	target := *output
	if target == "" {
		switch *kind {
		case config.KindProvider:
			target = "cmd/emberctl/config.toml"
		case config.KindTree:
			target = "cmd/emberctl/tree.toml"
		default:
			log.Fatalf("unknown kind: %s", *kind)
		}
	}

	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, target)
}

// Command main runs the database seeder for Inkwell.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"inkwell/internal/bootstrap"
	"inkwell/internal/config"
	"inkwell/internal/seed"
)

func main() {
	preset := flag.String("preset", "small", "Seeder preset to apply (small, demo, large)")
	presetsFile := flag.String("presets", "", "Path to a presets YAML file (defaults to the built-in presets)")
	shouldClean := flag.Bool("clean", false, "Drop all collections before seeding")
	randomSeed := flag.Int64("seed", 0, "Random seed for reproducible content (0 = random)")
	fastHash := flag.Bool("fast", true, "Hash the demo password with the minimum bcrypt cost")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("❌ Refusing to seed a production database")
	}

	catalog, err := loadCatalog(*presetsFile)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	p, err := catalog.Preset(*preset)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	log.Printf("Applying preset %q: %d users, %d posts, clean=%v", *preset, p.Users, p.Posts, *shouldClean)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{EnsureIndexes: true})
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer func() { _ = rt.Close(context.Background()) }()

	if *shouldClean {
		if err := seed.ClearAll(ctx, rt.DB.Database); err != nil {
			log.Fatalf("❌ Cleanup failed: %v", err)
		}
	}

	s := seed.NewSeeder(seed.NewStores(rt.DB.Database), rt.Tx, catalog, seed.Options{
		Preset:   p,
		Seed:     *randomSeed,
		FastHash: *fastHash,
	})
	if _, err := s.Run(ctx); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("✨ All done! Your database is now populated with demo data.")
	log.Printf("📧 Log in as demo@inkwell.dev with the password: %s", seed.DemoPassword)
}

func loadCatalog(path string) (*seed.Catalog, error) {
	if path == "" {
		return seed.DefaultCatalog()
	}
	return seed.LoadCatalog(path)
}

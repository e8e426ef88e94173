package store

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CatalogSeed is the YAML layout accepted by the -seed flag:
//
//	diseases:
//	  - id: 1
//	    name: Migraine
//	    name_vi: Đau nửa đầu
//	medicines:
//	  - id: 1
//	    name: Paracetamol
type CatalogSeed struct {
	Diseases  []Disease  `yaml:"diseases"`
	Medicines []Medicine `yaml:"medicines"`
}

func LoadCatalogFile(path string) (*CatalogSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	var seed CatalogSeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file %s: %w", path, err)
	}
	for i, d := range seed.Diseases {
		if d.ID <= 0 || d.Name == "" {
			return nil, fmt.Errorf("disease #%d: id and name are required", i+1)
		}
	}
	for i, m := range seed.Medicines {
		if m.ID <= 0 || m.Name == "" {
			return nil, fmt.Errorf("medicine #%d: id and name are required", i+1)
		}
	}
	return &seed, nil
}

// SeedCatalog upserts every entry of seed and returns how many rows were
// written. Upserted rows get a fresh updated_at, so the next embedding
// refresh picks them up.
func SeedCatalog(ctx context.Context, cs CatalogStore, seed *CatalogSeed) (int, error) {
	count := 0
	for i := range seed.Diseases {
		if err := cs.UpsertDisease(ctx, &seed.Diseases[i]); err != nil {
			return count, err
		}
		count++
	}
	for i := range seed.Medicines {
		if err := cs.UpsertMedicine(ctx, &seed.Medicines[i]); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

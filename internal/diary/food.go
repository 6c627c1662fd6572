package diary

import (
	"context"
	"fmt"

	"github.com/maruel/ksid"
	"github.com/nutrilog/nutrilog/internal/blob"
	"github.com/nutrilog/nutrilog/internal/verdb"
)

// Food is a catalog item diary entries can refer to by name.
type Food struct {
	verdb.Version
	Name        string  `json:"name" parquet:"Name" jsonschema:"description=Food name"`
	Brand       string  `json:"brand,omitempty" parquet:"Brand" jsonschema:"description=Brand or producer"`
	Calories    float64 `json:"calories" parquet:"Calories" jsonschema:"description=Calories per serving"`
	ServingSize string  `json:"serving_size,omitempty" parquet:"ServingSize" jsonschema:"description=Serving the calorie count refers to"`
}

// FoodService manages the food catalog.
type FoodService struct {
	table *verdb.Table[Food, *Food]
}

// NewFoodService creates the food catalog service backed by store.
func NewFoodService(store blob.Store) (*FoodService, error) {
	table, err := verdb.NewTable[Food, *Food](store, "food", verdb.Parquet[Food]{})
	if err != nil {
		return nil, fmt.Errorf("failed to create food table: %w", err)
	}
	return &FoodService{table: table}, nil
}

// Create records a new food and returns its InstanceID.
func (s *FoodService) Create(ctx context.Context, f Food) (ksid.ID, error) {
	if err := validateFood(&f); err != nil {
		return 0, err
	}
	return s.table.Create(ctx, f)
}

// Update supersedes the current version of a food with a full replacement
// payload and returns the new version's ID.
func (s *FoodService) Update(ctx context.Context, instanceID ksid.ID, f Food) (ksid.ID, error) {
	if err := validateFood(&f); err != nil {
		return 0, err
	}
	return s.table.Update(ctx, instanceID, f)
}

// Current returns the live version of every food.
func (s *FoodService) Current(ctx context.Context) ([]Food, error) {
	var out []Food
	for f, err := range s.table.Current(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// History returns every version of one food, oldest first.
func (s *FoodService) History(ctx context.Context, instanceID ksid.ID) ([]Food, error) {
	return s.table.History(ctx, instanceID)
}

// Schema describes the food table columns.
func (s *FoodService) Schema() []verdb.Column {
	return s.table.Schema()
}

func validateFood(f *Food) error {
	if f.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if f.Calories < 0 {
		return fmt.Errorf("%w: calories cannot be negative", ErrInvalid)
	}
	return nil
}

package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/travel-bookings/internal/domain"
	"github.com/robertarktes/travel-bookings/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CatalogRepository serves the read-mostly package catalog. Live seat counters
// are not here; they belong to the transactional store.
type CatalogRepository struct {
	packages *mongo.Collection
	images   *mongo.Collection
	logger   observability.Logger
}

func NewCatalogRepository(db *mongo.Database, logger observability.Logger) *CatalogRepository {
	return &CatalogRepository{
		packages: db.Collection("packages"),
		images:   db.Collection("packageImages"),
		logger:   logger,
	}
}

type PackageDoc struct {
	ID           uuid.UUID      `bson:"_id"`
	Name         string         `bson:"name"`
	Description  string         `bson:"description"`
	Destination  string         `bson:"destination"`
	DurationDays int            `bson:"durationDays"`
	AdultPrice   float64        `bson:"adultPrice"`
	ChildPrice   float64        `bson:"childPrice"`
	Departures   []DepartureDoc `bson:"departureDates"`
	ImageIDs     []uuid.UUID    `bson:"imageIds"`
	CreatedAt    time.Time      `bson:"createdAt"`
	UpdatedAt    time.Time      `bson:"updatedAt"`
}

type DepartureDoc struct {
	ID            uuid.UUID `bson:"_id"`
	DepartureDate time.Time `bson:"departureDate"`
	Capacity      int       `bson:"capacity"`
}

type ImageDoc struct {
	ID        uuid.UUID `bson:"_id"`
	PackageID uuid.UUID `bson:"packageId"`
	URL       string    `bson:"url"`
	Position  int       `bson:"position"`
}

func (c *CatalogRepository) GetPackage(ctx context.Context, id uuid.UUID) (*domain.TravelPackage, error) {
	var doc PackageDoc
	err := c.packages.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		c.logger.Error("failed to get package", err)
		return nil, err
	}
	pkg := doc.toDomain()
	return &pkg, nil
}

func (c *CatalogRepository) ListPackages(ctx context.Context, limit int64) ([]domain.TravelPackage, error) {
	cur, err := c.packages.Find(ctx, bson.M{},
		options.Find().SetSort(bson.M{"createdAt": -1}).SetLimit(limit))
	if err != nil {
		c.logger.Error("failed to list packages", err)
		return nil, err
	}
	defer cur.Close(ctx)

	var pkgs []domain.TravelPackage
	for cur.Next(ctx) {
		var doc PackageDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		pkgs = append(pkgs, doc.toDomain())
	}
	return pkgs, cur.Err()
}

func (c *CatalogRepository) CreatePackage(ctx context.Context, doc PackageDoc) error {
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = time.Now()
	_, err := c.packages.InsertOne(ctx, doc)
	if err != nil {
		c.logger.Error("failed to create package", err)
	}
	return err
}

func (c *CatalogRepository) GetPackageImages(ctx context.Context, packageID uuid.UUID) ([]ImageDoc, error) {
	cur, err := c.images.Find(ctx, bson.M{"packageId": packageID},
		options.Find().SetSort(bson.M{"position": 1}))
	if err != nil {
		c.logger.Error("failed to get package images", err)
		return nil, err
	}
	defer cur.Close(ctx)

	var images []ImageDoc
	for cur.Next(ctx) {
		var img ImageDoc
		if err := cur.Decode(&img); err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, cur.Err()
}

// GetPackageImageURLs flattens the image docs for checkout's display
// resolution.
func (c *CatalogRepository) GetPackageImageURLs(ctx context.Context, packageID uuid.UUID) ([]string, error) {
	images, err := c.GetPackageImages(ctx, packageID)
	if err != nil {
		return nil, err
	}
	urls := make([]string, len(images))
	for i, img := range images {
		urls[i] = img.URL
	}
	return urls, nil
}

func (d PackageDoc) toDomain() domain.TravelPackage {
	pkg := domain.TravelPackage{
		ID:           d.ID,
		Name:         d.Name,
		Description:  d.Description,
		Destination:  d.Destination,
		DurationDays: d.DurationDays,
		AdultPrice:   d.AdultPrice,
		ChildPrice:   d.ChildPrice,
		ImageIDs:     d.ImageIDs,
	}
	for _, dep := range d.Departures {
		pkg.Departures = append(pkg.Departures, domain.Departure{
			ID:        dep.ID,
			PackageID: d.ID,
			StartDate: dep.DepartureDate,
			Capacity:  dep.Capacity,
		})
	}
	return pkg
}

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/marketplace/internal/domain"
)

// ErrDuplicateAttribute is returned when an attribute name already exists.
var ErrDuplicateAttribute = errors.New("attribute already exists")

const uniqueViolation = "23505"

type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) CreateProduct(ctx context.Context, product *domain.Product) error {
	product.ID = uuid.New().String()
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, vendor_id, category_id, name, description, price,
			stock, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`, product.ID, product.VendorID, product.CategoryID, product.Name,
		product.Description, product.Price, product.Stock, product.IsActive, now)
	return err
}

const productColumns = `
	id, vendor_id, category_id, name, description, price,
	stock, is_active, created_at, updated_at
`

func scanProduct(scan func(...any) error) (*domain.Product, error) {
	product := &domain.Product{}
	err := scan(&product.ID, &product.VendorID, &product.CategoryID, &product.Name,
		&product.Description, &product.Price, &product.Stock, &product.IsActive,
		&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return product, nil
}

func (r *CatalogRepository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return scanProduct(row.Scan)
}

func (r *CatalogRepository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE is_active
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, err
		}
		products = append(products, *product)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *CatalogRepository) UpdateProduct(ctx context.Context, product *domain.Product) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET category_id = $1, name = $2, description = $3, price = $4,
			stock = $5, is_active = $6, updated_at = NOW()
		WHERE id = $7
	`, product.CategoryID, product.Name, product.Description, product.Price,
		product.Stock, product.IsActive, product.ID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (r *CatalogRepository) CreateVariant(ctx context.Context, variant *domain.ProductVariant) error {
	variant.ID = uuid.New().String()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO product_variants (id, product_id, attribute_value_id, price_modifier)
		VALUES ($1, $2, $3, $4)
	`, variant.ID, variant.ProductID, variant.AttributeValueID, variant.PriceModifier)
	return err
}

func (r *CatalogRepository) ListVariants(ctx context.Context, productID string) ([]domain.ProductVariant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, attribute_value_id, price_modifier
		FROM product_variants
		WHERE product_id = $1
	`, productID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	variants := []domain.ProductVariant{}
	for rows.Next() {
		var variant domain.ProductVariant
		if err := rows.Scan(&variant.ID, &variant.ProductID,
			&variant.AttributeValueID, &variant.PriceModifier); err != nil {
			return nil, err
		}
		variants = append(variants, variant)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return variants, nil
}

// AddImage attaches an image to a product. The first image of a product
// becomes its default; marking a later image default demotes the previous
// one inside the same transaction.
func (r *CatalogRepository) AddImage(ctx context.Context, image *domain.ProductImage) error {
	image.ID = uuid.New().String()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, image.ProductID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}

	if image.IsDefault {
		if _, err := tx.ExecContext(ctx,
			`UPDATE product_images SET is_default = false WHERE product_id = $1 AND is_default`,
			image.ProductID); err != nil {
			return err
		}
	} else {
		var hasImages bool
		err = tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM product_images WHERE product_id = $1)`,
			image.ProductID).Scan(&hasImages)
		if err != nil {
			return err
		}
		image.IsDefault = !hasImages
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO product_images (id, product_id, url, alt_text, is_default)
		VALUES ($1, $2, $3, $4, $5)
	`, image.ID, image.ProductID, image.URL, image.AltText, image.IsDefault); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *CatalogRepository) ListImages(ctx context.Context, productID string) ([]domain.ProductImage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, url, alt_text, is_default
		FROM product_images
		WHERE product_id = $1
		ORDER BY is_default DESC, id
	`, productID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	images := []domain.ProductImage{}
	for rows.Next() {
		var image domain.ProductImage
		if err := rows.Scan(&image.ID, &image.ProductID, &image.URL,
			&image.AltText, &image.IsDefault); err != nil {
			return nil, err
		}
		images = append(images, image)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return images, nil
}

// SetDefaultImage makes the given image the product's default, demoting
// whichever image held the flag before.
func (r *CatalogRepository) SetDefaultImage(ctx context.Context, productID, imageID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE product_images SET is_default = false WHERE product_id = $1 AND is_default`,
		productID); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE product_images SET is_default = true WHERE id = $1 AND product_id = $2`,
		imageID, productID)
	if err != nil {
		return err
	}
	if err := requireRow(result); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *CatalogRepository) DeleteImage(ctx context.Context, productID, imageID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM product_images WHERE id = $1 AND product_id = $2`,
		imageID, productID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// ProductPrice returns the base price of a product.
func (r *CatalogRepository) ProductPrice(ctx context.Context, productID string) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := r.db.QueryRowContext(ctx,
		`SELECT price FROM products WHERE id = $1`, productID).Scan(&price)
	if err != nil {
		if err == sql.ErrNoRows {
			return decimal.Zero, domain.ErrNotFound
		}
		return decimal.Zero, err
	}
	return price, nil
}

// VariantModifier returns the price modifier of a variant along with the
// product it belongs to, so callers can reject variants of other products.
func (r *CatalogRepository) VariantModifier(ctx context.Context, variantID string) (string, decimal.Decimal, error) {
	var productID string
	var modifier decimal.Decimal
	err := r.db.QueryRowContext(ctx,
		`SELECT product_id, price_modifier FROM product_variants WHERE id = $1`,
		variantID).Scan(&productID, &modifier)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", decimal.Zero, domain.ErrNotFound
		}
		return "", decimal.Zero, err
	}
	return productID, modifier, nil
}

func (r *CatalogRepository) CreateCategory(ctx context.Context, category *domain.Category) error {
	category.ID = uuid.New().String()

	if category.ParentID != nil {
		result, err := r.db.ExecContext(ctx, `
			INSERT INTO categories (id, name, parent_id)
			SELECT $1, $2, id FROM categories WHERE id = $3
		`, category.ID, category.Name, *category.ParentID)
		if err != nil {
			return err
		}
		return requireRow(result)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, parent_id) VALUES ($1, $2, NULL)`,
		category.ID, category.Name)
	return err
}

func (r *CatalogRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, parent_id FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	categories := []domain.Category{}
	for rows.Next() {
		var category domain.Category
		if err := rows.Scan(&category.ID, &category.Name, &category.ParentID); err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return categories, nil
}

func (r *CatalogRepository) CreateAttribute(ctx context.Context, attribute *domain.Attribute) error {
	attribute.ID = uuid.New().String()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO attributes (id, name) VALUES ($1, $2)`,
		attribute.ID, attribute.Name)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateAttribute
		}
		return err
	}
	return nil
}

func (r *CatalogRepository) ListAttributes(ctx context.Context) ([]domain.Attribute, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name FROM attributes ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	attributes := []domain.Attribute{}
	for rows.Next() {
		var attribute domain.Attribute
		if err := rows.Scan(&attribute.ID, &attribute.Name); err != nil {
			return nil, err
		}
		attributes = append(attributes, attribute)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return attributes, nil
}

func (r *CatalogRepository) CreateAttributeValue(ctx context.Context, value *domain.AttributeValue) error {
	value.ID = uuid.New().String()

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO attribute_values (id, attribute_id, value)
		SELECT $1, id, $3 FROM attributes WHERE id = $2
	`, value.ID, value.AttributeID, value.Value)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (r *CatalogRepository) ListAttributeValues(ctx context.Context, attributeID string) ([]domain.AttributeValue, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, attribute_id, value
		FROM attribute_values
		WHERE attribute_id = $1
		ORDER BY value
	`, attributeID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	values := []domain.AttributeValue{}
	for rows.Next() {
		var value domain.AttributeValue
		if err := rows.Scan(&value.ID, &value.AttributeID, &value.Value); err != nil {
			return nil, err
		}
		values = append(values, value)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return values, nil
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

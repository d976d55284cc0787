package store

// SQL query constants. All SQL lives here — PostgresStore methods reference
// these constants.

const (
	queryInsertProduct = `
		INSERT INTO products (
			title, description, price, cost,
			image_filename, predicted_margin,
			created_at, updated_at
		) VALUES (
			@title, @description, @price, @cost,
			@image_filename, @predicted_margin,
			now(), now()
		)
		RETURNING id, version, created_at, updated_at`

	productColumns = `
		id, title, description, price, cost,
		image_filename, predicted_margin,
		published_ebay, ebay_listing_id,
		published_etsy, etsy_listing_id,
		version, created_at, updated_at`

	queryGetProduct = `
		SELECT ` + productColumns + `
		FROM products
		WHERE id = $1`

	queryListProducts = `
		SELECT ` + productColumns + `
		FROM products
		ORDER BY id`

	querySetEbayState = `
		UPDATE products SET
			published_ebay = TRUE,
			ebay_listing_id = $2,
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND version = $3`

	querySetEtsyState = `
		UPDATE products SET
			published_etsy = TRUE,
			etsy_listing_id = $2,
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND version = $3`

	queryCountProducts = `
		SELECT
			count(*),
			count(*) FILTER (WHERE published_ebay),
			count(*) FILTER (WHERE published_etsy)
		FROM products`

	queryProductExists = `
		SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`
)

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/hashirwa/oracle-backend/models"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

var DB *sql.DB

// Connect establishes the database connection used as an optional issuer
// catalog source. The marketplace stores themselves are in-memory.
func Connect(dbURL string) error {
	var err error
	DB, err = sql.Open("postgres", dbURL)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(10)
	DB.SetMaxIdleConns(5)
	DB.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err = DB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.Info("Connected to database successfully")
	return nil
}

func Close() {
	if DB != nil {
		DB.Close()
		logrus.Info("Database connection closed")
	}
}

// Migrate applies the schema file if present.
func Migrate(schemaPath string) error {
	if DB == nil {
		return fmt.Errorf("database connection not established")
	}

	schema, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to read schema file %s: %w", schemaPath, err)
	}

	if _, err := DB.Exec(string(schema)); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	logrus.WithField("schema", schemaPath).Info("Database migration applied")
	return nil
}

// FetchIssuers loads the issuer catalog rows. NULL cert/price columns mean
// the issuer has no record yet for that mode.
func FetchIssuers(ctx context.Context) ([]models.Issuer, error) {
	if DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	query := `
		SELECT id, company_name, product_name,
		       cert_ok, cert_standard, cert_subject,
		       price_ok, price_sku, price_jpy_per_kg,
		       updated_at
		FROM issuers
		ORDER BY id
	`

	rows, err := DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query issuers: %w", err)
	}
	defer rows.Close()

	var issuers []models.Issuer
	for rows.Next() {
		var issuer models.Issuer
		var certOK sql.NullBool
		var certStandard, certSubject sql.NullString
		var priceOK sql.NullBool
		var priceSKU sql.NullString
		var priceJPYPerKg sql.NullFloat64

		err := rows.Scan(
			&issuer.ID, &issuer.CompanyName, &issuer.ProductName,
			&certOK, &certStandard, &certSubject,
			&priceOK, &priceSKU, &priceJPYPerKg,
			&issuer.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan issuer row: %w", err)
		}

		if certOK.Valid {
			issuer.Cert = &models.CertInfo{
				OK:       certOK.Bool,
				Standard: certStandard.String,
				Subject:  certSubject.String,
			}
		}
		if priceOK.Valid {
			issuer.Price = &models.PriceInfo{
				OK:       priceOK.Bool,
				SKU:      priceSKU.String,
				JPYPerKg: priceJPYPerKg.Float64,
			}
		}

		issuers = append(issuers, issuer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate issuer rows: %w", err)
	}

	logrus.WithField("count", len(issuers)).Info("Loaded issuer catalog from database")
	return issuers, nil
}

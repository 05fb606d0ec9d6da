package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/refundly/webhooks/pkg/domain/refund"
)

// RefundRepository loads refund read models for webhook payloads.
type RefundRepository struct {
	db *DB
}

// NewRefundRepository creates a new RefundRepository.
func NewRefundRepository(db *DB) *RefundRepository {
	return &RefundRepository{db: db}
}

var _ refund.Repository = (*RefundRepository)(nil)

// GetDetails loads the refund with its customer, card, transaction and notification target.
func (r *RefundRepository) GetDetails(ctx context.Context, id refund.ID) (*refund.Details, error) {
	query := `
		SELECT
			r.id, r.vendor_id, r.status, r.refund_date, r.agreement_date, r.terms_date,
			r.order_id, r.product_ids,
			c.id, c.name, c.email,
			cc.last_four, cc.network,
			t.id, t.reference, t.amount, t.currency,
			n.webhook_url, n.secret_key, n.redirect_url, n.tracking_url
		FROM refunds r
		LEFT JOIN customers c ON c.id = r.customer_id
		LEFT JOIN customer_cards cc ON cc.id = r.customer_card_id
		LEFT JOIN transactions t ON t.id = r.transaction_id
		LEFT JOIN refund_notifications n ON n.refund_id = r.id
		WHERE r.id = $1
	`

	var (
		refundID, vendorID       int64
		status                   string
		refundDate               time.Time
		agreementDate, termsDate sql.NullTime
		orderID                  string
		productIDs               pq.StringArray

		customerID                 sql.NullInt64
		customerName, customerMail sql.NullString

		cardLastFour, cardNetwork sql.NullString

		txID                    sql.NullInt64
		txReference, txCurrency sql.NullString
		txAmount                sql.NullInt64

		webhookURL, secretKey, redirectURL, trackingURL sql.NullString
	)

	err := r.db.QueryRowContext(ctx, query, id.Int64()).Scan(
		&refundID, &vendorID, &status, &refundDate, &agreementDate, &termsDate,
		&orderID, &productIDs,
		&customerID, &customerName, &customerMail,
		&cardLastFour, &cardNetwork,
		&txID, &txReference, &txAmount, &txCurrency,
		&webhookURL, &secretKey, &redirectURL, &trackingURL,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, refund.ErrRefundNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get refund details: %w", err)
	}

	d := &refund.Details{
		ID:            refund.ID(refundID),
		VendorID:      refund.ID(vendorID),
		Status:        refund.Status(status),
		RefundDate:    refundDate,
		AgreementDate: nullTimeValue(agreementDate),
		TermsDate:     nullTimeValue(termsDate),
		OrderID:       orderID,
		ProductIDs:    []string(productIDs),
	}
	if customerID.Valid {
		d.Customer = &refund.Customer{
			ID:    refund.ID(customerID.Int64),
			Name:  nullStringValue(customerName),
			Email: nullStringValue(customerMail),
		}
	}
	if cardLastFour.Valid {
		d.Card = &refund.Card{
			LastFour: cardLastFour.String,
			Network:  nullStringValue(cardNetwork),
		}
	}
	if txID.Valid {
		d.Transaction = &refund.Transaction{
			ID:        refund.ID(txID.Int64),
			Reference: nullStringValue(txReference),
			Amount:    txAmount.Int64,
			Currency:  nullStringValue(txCurrency),
		}
	}
	if webhookURL.Valid {
		d.Notification = &refund.Notification{
			WebhookURL:  webhookURL.String,
			SecretKey:   nullStringValue(secretKey),
			RedirectURL: nullStringValue(redirectURL),
			TrackingURL: nullStringValue(trackingURL),
		}
	}
	return d, nil
}

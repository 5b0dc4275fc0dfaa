package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/productos/internal/domain/product"
)

const (
	listProductsSQL = `SELECT codigo, nombre, precio, disponible, imagen FROM productos`

	listCodesSQL = `SELECT codigo FROM productos`

	findProductSQL = `SELECT codigo, nombre, precio, disponible, imagen
		FROM productos WHERE codigo = $1`

	insertProductSQL = `INSERT INTO productos (codigo, nombre, precio, disponible, imagen)
		VALUES ($1, $2, $3, $4, $5)`

	updateProductSQL = `UPDATE productos SET nombre = $2, precio = $3, disponible = $4, imagen = $5
		WHERE codigo = $1`

	deleteProductSQL = `DELETE FROM productos WHERE codigo = $1`
)

const instrumentationName = "github.com/xenking/productos/internal/storage/postgres"

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository on the productos table.
type ProductRepository struct {
	conns  Connector
	lg     *zap.Logger
	tracer trace.Tracer
	ops    metric.Int64Counter
}

// Option configures a ProductRepository.
type Option func(*repoOptions)

type repoOptions struct {
	lg *zap.Logger
	tp trace.TracerProvider
	mp metric.MeterProvider
}

// WithLogger sets the logger used for debug output.
func WithLogger(lg *zap.Logger) Option {
	return func(o *repoOptions) { o.lg = lg }
}

// WithTracerProvider sets the tracer provider for per-operation spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *repoOptions) { o.tp = tp }
}

// WithMeterProvider sets the meter provider for the operation counter.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *repoOptions) { o.mp = mp }
}

// NewProductRepository returns a ProductRepository that obtains its
// connection from conns on every call.
func NewProductRepository(conns Connector, opts ...Option) *ProductRepository {
	o := repoOptions{
		lg: zap.NewNop(),
		tp: tracenoop.NewTracerProvider(),
		mp: metricnoop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	var ops metric.Int64Counter = metricnoop.Int64Counter{}
	if c, err := o.mp.Meter(instrumentationName).Int64Counter("catalog.product.operations",
		metric.WithDescription("Product repository operations by outcome"),
	); err == nil {
		ops = c
	}

	return &ProductRepository{
		conns:  conns,
		lg:     o.lg,
		tracer: o.tp.Tracer(instrumentationName),
		ops:    ops,
	}
}

// List returns every product. Row order is whatever the database returns.
func (r *ProductRepository) List(ctx context.Context) (_ []product.Product, rerr error) {
	ctx, done := r.observe(ctx, "list", "")
	defer func() { done(rerr) }()

	q, err := r.conns.Querier(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing products")
	}

	rows, err := q.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, errors.Wrap(classify(err), "listing products")
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, errors.Wrap(classify(err), "listing products")
	}
	if products == nil {
		products = []product.Product{}
	}

	r.lg.Debug("Listed products", zap.Int("count", len(products)))
	return products, nil
}

// Codes returns the code of every product without loading the rows.
func (r *ProductRepository) Codes(ctx context.Context) (_ []string, rerr error) {
	ctx, done := r.observe(ctx, "codes", "")
	defer func() { done(rerr) }()

	q, err := r.conns.Querier(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing codes")
	}

	rows, err := q.Query(ctx, listCodesSQL)
	if err != nil {
		return nil, errors.Wrap(classify(err), "listing codes")
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Wrap(classify(err), "listing codes")
	}
	return codes, nil
}

// FindByCode returns the product with the given code, or product.ErrNotFound.
func (r *ProductRepository) FindByCode(ctx context.Context, code string) (_ *product.Product, rerr error) {
	ctx, done := r.observe(ctx, "find", code)
	defer func() { done(rerr) }()

	q, err := r.conns.Querier(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "getting product %q", code)
	}

	rows, err := q.Query(ctx, findProductSQL, code)
	if err != nil {
		return nil, errors.Wrapf(classify(err), "getting product %q", code)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(classify(err), "getting product %q", code)
	}
	return &p, nil
}

// Insert stores a new product. Uniqueness of the code is left to the primary
// key; a duplicate yields product.ErrConflict.
func (r *ProductRepository) Insert(ctx context.Context, p product.Product) (rerr error) {
	ctx, done := r.observe(ctx, "insert", p.Code)
	defer func() { done(rerr) }()

	q, err := r.conns.Querier(ctx)
	if err != nil {
		return errors.Wrapf(err, "inserting product %q", p.Code)
	}

	if _, err := q.Exec(ctx, insertProductSQL, p.Code, p.Name, p.Price, p.Available, p.Image); err != nil {
		return errors.Wrapf(classify(err), "inserting product %q", p.Code)
	}

	r.lg.Debug("Inserted product", zap.String("code", p.Code))
	return nil
}

// Update overwrites name, price, availability and image of the product with
// p.Code. It returns product.ErrNotFound when no row matches.
func (r *ProductRepository) Update(ctx context.Context, p product.Product) (rerr error) {
	ctx, done := r.observe(ctx, "update", p.Code)
	defer func() { done(rerr) }()

	q, err := r.conns.Querier(ctx)
	if err != nil {
		return errors.Wrapf(err, "updating product %q", p.Code)
	}

	tag, err := q.Exec(ctx, updateProductSQL, p.Code, p.Name, p.Price, p.Available, p.Image)
	if err != nil {
		return errors.Wrapf(classify(err), "updating product %q", p.Code)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}

	r.lg.Debug("Updated product", zap.String("code", p.Code))
	return nil
}

// Delete removes the product with the given code. It returns
// product.ErrNotFound when no row matches.
func (r *ProductRepository) Delete(ctx context.Context, code string) (rerr error) {
	ctx, done := r.observe(ctx, "delete", code)
	defer func() { done(rerr) }()

	q, err := r.conns.Querier(ctx)
	if err != nil {
		return errors.Wrapf(err, "deleting product %q", code)
	}

	tag, err := q.Exec(ctx, deleteProductSQL, code)
	if err != nil {
		return errors.Wrapf(classify(err), "deleting product %q", code)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}

	r.lg.Debug("Deleted product", zap.String("code", code))
	return nil
}

// observe starts a span for op and returns a func that ends it and counts
// the outcome.
func (r *ProductRepository) observe(ctx context.Context, op, code string) (context.Context, func(error)) {
	attrs := []attribute.KeyValue{attribute.String("db.operation", op)}
	if code != "" {
		attrs = append(attrs, attribute.String("product.code", code))
	}
	ctx, span := r.tracer.Start(ctx, "product."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)

	return ctx, func(err error) {
		result := outcome(err)
		if result == "error" {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("outcome", result))
		span.End()

		r.ops.Add(ctx, 1, metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("outcome", result),
		))
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, product.ErrNotFound):
		return "not_found"
	case errors.Is(err, product.ErrConflict):
		return "conflict"
	case errors.Is(err, product.ErrInvalid):
		return "invalid"
	default:
		return "error"
	}
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.Code, &p.Name, &p.Price, &p.Available, &p.Image)
	return p, err
}

package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sumika-cloud/sumika/internal/db/postgres"
	"github.com/sumika-cloud/sumika/internal/domain"
	"github.com/sumika-cloud/sumika/internal/domain/feature"
)

type mockTxRunner struct {
	names []string
}

func (m *mockTxRunner) InTransaction(ctx context.Context, name string, fn func(ctx context.Context, tx postgres.Tx) error) error {
	m.names = append(m.names, name)
	return fn(ctx, nil)
}

type mockChairWriter struct {
	batches     [][]domain.Chair
	featureRows [][]domain.FeatureRow
	insertErr   error
}

func (m *mockChairWriter) BulkInsert(ctx context.Context, tx postgres.Querier, chairs []domain.Chair) error {
	m.batches = append(m.batches, append([]domain.Chair(nil), chairs...))
	return m.insertErr
}

func (m *mockChairWriter) BulkInsertFeatures(ctx context.Context, tx postgres.Querier, rows []domain.FeatureRow) error {
	m.featureRows = append(m.featureRows, append([]domain.FeatureRow(nil), rows...))
	return nil
}

type mockEstateWriter struct {
	batches     [][]domain.Estate
	featureRows [][]domain.FeatureRow
}

func (m *mockEstateWriter) BulkInsert(ctx context.Context, tx postgres.Querier, estates []domain.Estate) error {
	m.batches = append(m.batches, append([]domain.Estate(nil), estates...))
	return nil
}

func (m *mockEstateWriter) BulkInsertFeatures(ctx context.Context, tx postgres.Querier, rows []domain.FeatureRow) error {
	m.featureRows = append(m.featureRows, append([]domain.FeatureRow(nil), rows...))
	return nil
}

func chairLine(id int, features string) string {
	return fmt.Sprintf("%d,座椅子%d,説明,/images/chair/%d.png,1000,90,50,55,黒,%q,座椅子,100,5\n", id, id, id, features)
}

func estateLine(id int, features string) string {
	return fmt.Sprintf("%d,物件%d,説明,/images/estate/%d.png,東京都港区,35.65,139.73,80000,180,90,%q,200\n", id, id, id, features)
}

func testService(tx *mockTxRunner, chairs *mockChairWriter, estates *mockEstateWriter) *Service {
	chairVocab := feature.NewVocabulary([]string{"ヘッドレスト付き", "肘掛け付き"})
	estateVocab := feature.NewVocabulary([]string{"最上階", "防犯カメラ"})
	return New(tx, chairs, estates, chairVocab, estateVocab)
}

func TestIngestChairs_Batches(t *testing.T) {
	tx := &mockTxRunner{}
	chairs := &mockChairWriter{}
	svc := testService(tx, chairs, &mockEstateWriter{}).WithBatchSize(2)

	var sb strings.Builder
	for i := 1; i <= 5; i++ {
		sb.WriteString(chairLine(i, "ヘッドレスト付き"))
	}

	n, err := svc.IngestChairs(context.Background(), strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("IngestChairs: %v", err)
	}
	if n != 5 {
		t.Errorf("rows = %d, want 5", n)
	}
	if len(tx.names) != 1 || tx.names[0] != "chair_ingest" {
		t.Errorf("transactions = %v, want one chair_ingest", tx.names)
	}

	sizes := make([]int, 0, len(chairs.batches))
	for _, b := range chairs.batches {
		sizes = append(sizes, len(b))
	}
	if len(sizes) != 3 || sizes[0] != 2 || sizes[1] != 2 || sizes[2] != 1 {
		t.Errorf("batch sizes = %v, want [2 2 1]", sizes)
	}

	first := chairs.batches[0][0]
	if first.ID != 1 || first.Price != 1000 || first.Kind != "座椅子" || first.Stock != 5 {
		t.Errorf("parsed chair = %+v", first)
	}
}

func TestIngestChairs_MalformedNumber(t *testing.T) {
	tx := &mockTxRunner{}
	svc := testService(tx, &mockChairWriter{}, &mockEstateWriter{})

	line := "1,座椅子,説明,/img.png,not-a-price,90,50,55,黒,,座椅子,100,5\n"
	_, err := svc.IngestChairs(context.Background(), strings.NewReader(line))
	if !errors.Is(err, domain.ErrMalformedUpload) {
		t.Fatalf("expected ErrMalformedUpload, got %v", err)
	}
}

func TestIngestChairs_WrongFieldCount(t *testing.T) {
	svc := testService(&mockTxRunner{}, &mockChairWriter{}, &mockEstateWriter{})

	_, err := svc.IngestChairs(context.Background(), strings.NewReader("1,too,short\n"))
	if !errors.Is(err, domain.ErrMalformedUpload) {
		t.Fatalf("expected ErrMalformedUpload, got %v", err)
	}
}

func TestIngestChairs_FeatureNormalization(t *testing.T) {
	chairs := &mockChairWriter{}
	svc := testService(&mockTxRunner{}, chairs, &mockEstateWriter{})

	input := chairLine(1, "ヘッドレスト付き,肘掛け付き") + chairLine(2, "") + chairLine(3, "肘掛け付き")

	_, err := svc.IngestChairs(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("IngestChairs: %v", err)
	}

	if len(chairs.featureRows) != 1 {
		t.Fatalf("feature flushes = %d, want 1", len(chairs.featureRows))
	}
	rows := chairs.featureRows[0]
	want := []domain.FeatureRow{
		{EntityID: 1, FeatureID: 1},
		{EntityID: 1, FeatureID: 2},
		{EntityID: 3, FeatureID: 2},
	}
	if len(rows) != len(want) {
		t.Fatalf("feature rows = %v, want %v", rows, want)
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, rows[i], want[i])
		}
	}
}

func TestIngestChairs_UnknownLabelDropped(t *testing.T) {
	chairs := &mockChairWriter{}
	svc := testService(&mockTxRunner{}, chairs, &mockEstateWriter{})

	_, err := svc.IngestChairs(context.Background(), strings.NewReader(chairLine(1, "未知の機能,肘掛け付き")))
	if err != nil {
		t.Fatalf("IngestChairs: %v", err)
	}

	rows := chairs.featureRows[0]
	if len(rows) != 1 || rows[0] != (domain.FeatureRow{EntityID: 1, FeatureID: 2}) {
		t.Errorf("feature rows = %v, want only the known label", rows)
	}
}

func TestIngestChairs_RepeatedLabelYieldsOneRow(t *testing.T) {
	chairs := &mockChairWriter{}
	svc := testService(&mockTxRunner{}, chairs, &mockEstateWriter{})

	_, err := svc.IngestChairs(context.Background(), strings.NewReader(chairLine(1, "肘掛け付き,肘掛け付き")))
	if err != nil {
		t.Fatalf("IngestChairs: %v", err)
	}

	rows := chairs.featureRows[0]
	if len(rows) != 1 || rows[0] != (domain.FeatureRow{EntityID: 1, FeatureID: 2}) {
		t.Errorf("feature rows = %v, want a single deduplicated row", rows)
	}
}

func TestIngestChairs_InsertErrorAborts(t *testing.T) {
	chairs := &mockChairWriter{insertErr: domain.ErrDuplicateID}
	svc := testService(&mockTxRunner{}, chairs, &mockEstateWriter{})

	_, err := svc.IngestChairs(context.Background(), strings.NewReader(chairLine(1, "")))
	if !errors.Is(err, domain.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestIngestEstates(t *testing.T) {
	tx := &mockTxRunner{}
	estates := &mockEstateWriter{}
	svc := testService(tx, &mockChairWriter{}, estates)

	input := estateLine(1, "最上階") + estateLine(2, "防犯カメラ,最上階")
	n, err := svc.IngestEstates(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("IngestEstates: %v", err)
	}
	if n != 2 {
		t.Errorf("rows = %d, want 2", n)
	}
	if len(tx.names) != 1 || tx.names[0] != "estate_ingest" {
		t.Errorf("transactions = %v", tx.names)
	}

	first := estates.batches[0][0]
	if first.ID != 1 || first.Latitude != 35.65 || first.Longitude != 139.73 || first.Rent != 80000 {
		t.Errorf("parsed estate = %+v", first)
	}
	if first.Features != "最上階" {
		t.Errorf("parsed features = %q, want 最上階", first.Features)
	}

	rows := estates.featureRows[0]
	want := []domain.FeatureRow{
		{EntityID: 1, FeatureID: 1},
		{EntityID: 2, FeatureID: 2},
		{EntityID: 2, FeatureID: 1},
	}
	if len(rows) != len(want) {
		t.Fatalf("feature rows = %v, want %v", rows, want)
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, rows[i], want[i])
		}
	}
}

func TestIngestEstates_MalformedCoordinate(t *testing.T) {
	svc := testService(&mockTxRunner{}, &mockChairWriter{}, &mockEstateWriter{})

	line := "1,物件,説明,/img.png,東京都,north,139.73,80000,180,90,,200\n"
	_, err := svc.IngestEstates(context.Background(), strings.NewReader(line))
	if !errors.Is(err, domain.ErrMalformedUpload) {
		t.Fatalf("expected ErrMalformedUpload, got %v", err)
	}
}

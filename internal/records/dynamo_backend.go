package records

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/wolfman30/medisync/pkg/logging"
)

const dynamoBatchSize = 25

type dynamoAPI interface {
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	BatchWriteItem(context.Context, *dynamodb.BatchWriteItemInput, ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// DynamoBackend stores patients and appointments in two DynamoDB tables keyed
// by "id".
type DynamoBackend struct {
	client            dynamoAPI
	patientsTable     string
	appointmentsTable string
	logger            *logging.Logger
}

var _ Backend = (*DynamoBackend)(nil)

// NewDynamoBackend builds a backend on the provided DynamoDB client.
func NewDynamoBackend(client dynamoAPI, patientsTable, appointmentsTable string, logger *logging.Logger) *DynamoBackend {
	if client == nil {
		panic("records: dynamodb client cannot be nil")
	}
	if patientsTable == "" || appointmentsTable == "" {
		panic("records: table names cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoBackend{
		client:            client,
		patientsTable:     patientsTable,
		appointmentsTable: appointmentsTable,
		logger:            logger,
	}
}

func (b *DynamoBackend) ListPatients(ctx context.Context) ([]Patient, error) {
	var out []Patient
	err := b.scan(ctx, b.patientsTable, func(items []map[string]types.AttributeValue) error {
		var page []Patient
		if err := attributevalue.UnmarshalListOfMaps(items, &page); err != nil {
			return fmt.Errorf("records: decode patients: %w", err)
		}
		out = append(out, page...)
		return nil
	})
	return out, err
}

func (b *DynamoBackend) GetPatient(ctx context.Context, id string) (Patient, error) {
	res, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(b.patientsTable),
		Key:            idKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return Patient{}, fmt.Errorf("records: get patient: %w", err)
	}
	if res.Item == nil {
		return Patient{}, ErrPatientNotFound
	}
	var p Patient
	if err := attributevalue.UnmarshalMap(res.Item, &p); err != nil {
		return Patient{}, fmt.Errorf("records: decode patient: %w", err)
	}
	return p, nil
}

func (b *DynamoBackend) CreatePatient(ctx context.Context, p Patient) (string, error) {
	p.ID = uuid.NewString()
	if p.Prescriptions == nil {
		p.Prescriptions = []string{}
	}
	if err := b.putNew(ctx, b.patientsTable, p); err != nil {
		return "", err
	}
	return p.ID, nil
}

func (b *DynamoBackend) UpdatePatient(ctx context.Context, id string, u PatientUpdate) error {
	var sets []string
	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	add := func(attr string, v types.AttributeValue) {
		sets = append(sets, fmt.Sprintf("#%s = :%s", attr, attr))
		names["#"+attr] = attr
		values[":"+attr] = v
	}
	if u.Name != nil {
		add("name", &types.AttributeValueMemberS{Value: *u.Name})
	}
	if u.Age != nil {
		add("age", &types.AttributeValueMemberN{Value: fmt.Sprint(*u.Age)})
	}
	if u.Diagnosis != nil {
		add("diagnosis", &types.AttributeValueMemberS{Value: *u.Diagnosis})
	}
	if u.History != nil {
		add("history", &types.AttributeValueMemberS{Value: *u.History})
	}
	if u.AvatarURL != nil {
		add("avatarUrl", &types.AttributeValueMemberS{Value: *u.AvatarURL})
	}
	if len(sets) == 0 {
		return nil
	}
	return b.update(ctx, b.patientsTable, id, "SET "+strings.Join(sets, ", "), names, values, ErrPatientNotFound)
}

func (b *DynamoBackend) AppendPrescription(ctx context.Context, id string, text string) error {
	return b.update(ctx, b.patientsTable, id,
		"SET #rx = list_append(if_not_exists(#rx, :empty), :entry)",
		map[string]string{"#rx": "prescriptions"},
		map[string]types.AttributeValue{
			":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
			":entry": &types.AttributeValueMemberL{Value: []types.AttributeValue{
				&types.AttributeValueMemberS{Value: text},
			}},
		},
		ErrPatientNotFound,
	)
}

func (b *DynamoBackend) SeedPatients(ctx context.Context, patients []Patient) error {
	for start := 0; start < len(patients); start += dynamoBatchSize {
		end := min(start+dynamoBatchSize, len(patients))
		requests := make([]types.WriteRequest, 0, end-start)
		for _, p := range patients[start:end] {
			item, err := attributevalue.MarshalMap(p)
			if err != nil {
				return fmt.Errorf("records: marshal seed patient: %w", err)
			}
			requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
		}
		pending := map[string][]types.WriteRequest{b.patientsTable: requests}
		for attempt := 0; len(pending) > 0; attempt++ {
			if attempt == 3 {
				return fmt.Errorf("records: seed patients: %d writes unprocessed", len(pending[b.patientsTable]))
			}
			out, err := b.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return fmt.Errorf("records: seed patients: %w", err)
			}
			pending = out.UnprocessedItems
		}
		b.logger.Debug("seed batch written", "table", b.patientsTable, "count", end-start)
	}
	return nil
}

func (b *DynamoBackend) ListAppointments(ctx context.Context) ([]Appointment, error) {
	var out []Appointment
	err := b.scan(ctx, b.appointmentsTable, func(items []map[string]types.AttributeValue) error {
		var page []Appointment
		if err := attributevalue.UnmarshalListOfMaps(items, &page); err != nil {
			return fmt.Errorf("records: decode appointments: %w", err)
		}
		out = append(out, page...)
		return nil
	})
	return out, err
}

func (b *DynamoBackend) CreateAppointment(ctx context.Context, a Appointment) (string, error) {
	a.ID = uuid.NewString()
	if err := b.putNew(ctx, b.appointmentsTable, a); err != nil {
		return "", err
	}
	return a.ID, nil
}

func (b *DynamoBackend) UpdateAppointmentStatus(ctx context.Context, id string, status AppointmentStatus) error {
	return b.update(ctx, b.appointmentsTable, id,
		"SET #status = :status",
		map[string]string{"#status": "status"},
		map[string]types.AttributeValue{":status": &types.AttributeValueMemberS{Value: string(status)}},
		ErrAppointmentNotFound,
	)
}

func (b *DynamoBackend) scan(ctx context.Context, table string, page func([]map[string]types.AttributeValue) error) error {
	paginator := dynamodb.NewScanPaginator(b.client, &dynamodb.ScanInput{
		TableName:      aws.String(table),
		ConsistentRead: aws.Bool(true),
	})
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("records: scan %s: %w", table, err)
		}
		if err := page(out.Items); err != nil {
			return err
		}
	}
	return nil
}

func (b *DynamoBackend) putNew(ctx context.Context, table string, v any) error {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return fmt.Errorf("records: marshal item: %w", err)
	}
	_, err = b.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return fmt.Errorf("records: put %s: %w", table, err)
	}
	return nil
}

func (b *DynamoBackend) update(ctx context.Context, table, id, expr string, names map[string]string, values map[string]types.AttributeValue, notFound error) error {
	_, err := b.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(table),
		Key:                       idKey(id),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("attribute_exists(id)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return notFound
		}
		return fmt.Errorf("records: update %s: %w", table, err)
	}
	return nil
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

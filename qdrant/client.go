// Package qdrant reads labelled vectors out of a Qdrant collection over gRPC,
// so that a stored collection can be embedded without exporting it first.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// DefaultPageSize is the number of points fetched per scroll request.
const DefaultPageSize = 256

// ErrEmptyCollection is returned when the collection holds no vectors.
var ErrEmptyCollection = errors.New("collection has no vectors")

// Client wraps gRPC connections to a Qdrant vector database instance.
type Client struct {
	connection        *grpc.ClientConn
	pointsClient      pb.PointsClient
	collectionsClient pb.CollectionsClient
	collectionName    string
	pageSize          uint32
	textField         string
}

// Point is a stored vector with its id and text payload.
type Point struct {
	ID     string
	Text   string
	Vector []float32
}

// Option configures a Client.
type Option func(*Client)

// WithPageSize sets how many points each scroll request returns.
func WithPageSize(size uint32) Option {
	return func(c *Client) {
		if size > 0 {
			c.pageSize = size
		}
	}
}

// WithTextField names the payload field used as the point label. Default "text".
func WithTextField(field string) Option {
	return func(c *Client) { c.textField = field }
}

// NewClient connects to the Qdrant instance at address and checks that the
// collection exists.
func NewClient(ctx context.Context, address, collectionName string, opts ...Option) (*Client, error) {
	connection, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant: %w", err)
	}

	client := newClient(pb.NewPointsClient(connection), collectionName, opts...)
	client.connection = connection
	client.collectionsClient = pb.NewCollectionsClient(connection)

	if _, err := client.collectionsClient.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: collectionName,
	}); err != nil {
		connection.Close()
		return nil, fmt.Errorf("get collection %q: %w", collectionName, err)
	}

	return client, nil
}

func newClient(points pb.PointsClient, collectionName string, opts ...Option) *Client {
	client := &Client{
		pointsClient:   points,
		collectionName: collectionName,
		pageSize:       DefaultPageSize,
		textField:      "text",
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// GetAll scrolls through the whole collection and returns every point that
// carries a dense vector, in scroll order.
func (client *Client) GetAll(ctx context.Context) ([]Point, error) {
	var (
		points []Point
		offset *pb.PointId
	)
	for {
		scrollResponse, err := client.pointsClient.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: client.collectionName,
			Offset:         offset,
			WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
			WithVectors:    &pb.WithVectorsSelector{SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: true}},
			Limit:          pb.PtrOf(client.pageSize),
		})
		if err != nil {
			return nil, fmt.Errorf("scroll points: %w", err)
		}

		for _, retrievedPoint := range scrollResponse.GetResult() {
			vector := retrievedPoint.GetVectors().GetVector().GetData()
			if len(vector) == 0 {
				continue
			}
			var text string
			if payload, exists := retrievedPoint.GetPayload()[client.textField]; exists {
				text = payload.GetStringValue()
			}
			points = append(points, Point{
				ID:     pointID(retrievedPoint.GetId()),
				Text:   text,
				Vector: vector,
			})
		}

		offset = scrollResponse.GetNextPageOffset()
		if offset == nil {
			return points, nil
		}
	}
}

func pointID(id *pb.PointId) string {
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

// Dataset converts points into labels and float64 vectors. All vectors must
// have the same length.
func Dataset(points []Point) ([]string, [][]float64, error) {
	if len(points) == 0 {
		return nil, nil, ErrEmptyCollection
	}
	labels := make([]string, len(points))
	vectors := make([][]float64, len(points))
	dims := len(points[0].Vector)
	for i, p := range points {
		if len(p.Vector) != dims {
			return nil, nil, fmt.Errorf("point %s has %d dimensions, want %d", p.ID, len(p.Vector), dims)
		}
		labels[i] = p.Text
		if labels[i] == "" {
			labels[i] = p.ID
		}
		vectors[i] = make([]float64, dims)
		for d, v := range p.Vector {
			vectors[i][d] = float64(v)
		}
	}
	return labels, vectors, nil
}

// Close terminates the gRPC connection to the Qdrant server.
func (client *Client) Close() error {
	if client.connection == nil {
		return nil
	}
	return client.connection.Close()
}

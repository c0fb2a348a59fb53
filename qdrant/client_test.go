package qdrant

import (
	"context"
	"errors"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

// fakePoints serves scroll pages; the offset of page p is the numeric id p.
type fakePoints struct {
	pb.PointsClient
	pages    [][]*pb.RetrievedPoint
	requests []*pb.ScrollPoints
	err      error
}

func (f *fakePoints) Scroll(_ context.Context, in *pb.ScrollPoints, _ ...grpc.CallOption) (*pb.ScrollResponse, error) {
	f.requests = append(f.requests, in)
	if f.err != nil {
		return nil, f.err
	}
	page := int(in.GetOffset().GetNum())
	resp := &pb.ScrollResponse{Result: f.pages[page]}
	if page+1 < len(f.pages) {
		resp.NextPageOffset = numID(uint64(page + 1))
	}
	return resp, nil
}

func numID(n uint64) *pb.PointId {
	return &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: n}}
}

func uuidID(s string) *pb.PointId {
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: s}}
}

func retrieved(id *pb.PointId, text string, vector ...float32) *pb.RetrievedPoint {
	p := &pb.RetrievedPoint{Id: id, Payload: map[string]*pb.Value{}}
	if text != "" {
		p.Payload["text"] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: text}}
	}
	if len(vector) > 0 {
		p.Vectors = &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vector}}}
	}
	return p
}

func TestGetAllFollowsPages(t *testing.T) {
	fake := &fakePoints{pages: [][]*pb.RetrievedPoint{
		{retrieved(uuidID("a-1"), "first", 1, 2), retrieved(numID(7), "second", 3, 4)},
		{retrieved(numID(8), "", 5, 6), retrieved(numID(9), "no vector")},
		{retrieved(uuidID("c-3"), "last", 7, 8)},
	}}
	client := newClient(fake, "docs", WithPageSize(2))

	points, err := client.GetAll(context.Background())
	require.NoError(t, err)

	require.Len(t, fake.requests, 3)
	assert.Nil(t, fake.requests[0].GetOffset())
	assert.Equal(t, uint64(1), fake.requests[1].GetOffset().GetNum())
	assert.Equal(t, uint32(2), fake.requests[0].GetLimit())
	assert.Equal(t, "docs", fake.requests[0].GetCollectionName())

	require.Len(t, points, 4)
	assert.Equal(t, Point{ID: "a-1", Text: "first", Vector: []float32{1, 2}}, points[0])
	assert.Equal(t, "7", points[1].ID)
	assert.Equal(t, "", points[2].Text)
	assert.Equal(t, "c-3", points[3].ID)
}

func TestGetAllCustomTextField(t *testing.T) {
	p := retrieved(numID(1), "", 1)
	p.Payload["title"] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: "Title"}}
	fake := &fakePoints{pages: [][]*pb.RetrievedPoint{{p}}}

	points, err := newClient(fake, "docs", WithTextField("title")).GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "Title", points[0].Text)
}

func TestGetAllWrapsErrors(t *testing.T) {
	boom := errors.New("unavailable")
	_, err := newClient(&fakePoints{err: boom}, "docs").GetAll(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "scroll points")
}

func TestDefaults(t *testing.T) {
	client := newClient(&fakePoints{}, "docs", WithPageSize(0))
	assert.Equal(t, uint32(DefaultPageSize), client.pageSize)
	assert.Equal(t, "text", client.textField)
	assert.NoError(t, client.Close())
}

func TestDataset(t *testing.T) {
	labels, vectors, err := Dataset([]Point{
		{ID: "1", Text: "one", Vector: []float32{1, 0.5}},
		{ID: "2", Vector: []float32{0, 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "2"}, labels)
	assert.Equal(t, [][]float64{{1, 0.5}, {0, 2}}, vectors)

	_, _, err = Dataset(nil)
	assert.ErrorIs(t, err, ErrEmptyCollection)

	_, _, err = Dataset([]Point{{ID: "1", Vector: []float32{1}}, {ID: "2", Vector: []float32{1, 2}}})
	assert.Error(t, err)
}

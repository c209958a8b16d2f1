package si

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInfoAddMemberPromotesCategory(t *testing.T) {
	root := NewVoid()
	child := root.AddMember("name")
	require.Equal(t, Object, root.Category())
	child.SetString("alice")

	got, err := root.Member("name")
	require.NoError(t, err)
	s, err := got.GetString()
	require.NoError(t, err)
	require.Equal(t, "alice", s)
}

func TestInfoAddMemberWithoutNameMakesArray(t *testing.T) {
	root := NewVoid()
	root.AddMember("").SetInt(1)
	root.AddMember("").SetInt(2)
	require.Equal(t, Array, root.Category())
	require.Len(t, root.Members(), 2)
}

func TestFindMemberFirstWinsOnDuplicate(t *testing.T) {
	root := NewObject()
	root.AddMember("x").SetInt(1)
	root.AddMember("x").SetInt(2)
	m := root.FindMember("x")
	v, _ := m.GetInt()
	require.EqualValues(t, 1, v)
}

func TestMemberNotFound(t *testing.T) {
	root := NewObject()
	_, err := root.Member("missing")
	require.Error(t, err)
	var nf *MemberNotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestCategoryCannotChangeWithoutClear(t *testing.T) {
	root := NewObject()
	err := root.SetScalar(Scalar{Kind: ScalarInt, I: 1})
	require.Error(t, err)

	root.SetNull()
	require.NoError(t, root.SetScalar(Scalar{Kind: ScalarInt, I: 1}))
}

func TestScalarConversions(t *testing.T) {
	s := Scalar{Kind: ScalarUint, U: 42}
	i, err := s.AsInt()
	require.NoError(t, err)
	require.EqualValues(t, 42, i)

	neg := Scalar{Kind: ScalarInt, I: -1}
	_, err = neg.AsUint()
	require.Error(t, err)

	str := Scalar{Kind: ScalarString, Str: "not-a-number"}
	_, err = str.AsInt()
	require.Error(t, err)
	var convErr *ConversionError
	require.ErrorAs(t, err, &convErr)
}

func TestDecomposerComposerRoundTrip(t *testing.T) {
	root := NewObject()
	root.AddMember("id").SetInt(7)
	root.AddMember("name").SetString("widget")
	arr := root.AddMember("tags")
	arr.AddMember("").SetString("a")
	arr.AddMember("").SetString("b")

	c := NewComposer()
	dec := NewDecomposer(NewBuilderFormatter(c))
	require.NoError(t, dec.Decompose(root, ""))

	got := c.Result()
	require.Equal(t, Object, got.Category())

	id, err := got.FindMember("id").GetInt()
	require.NoError(t, err)
	require.EqualValues(t, 7, id)

	name, err := got.FindMember("name").GetString()
	require.NoError(t, err)
	require.Equal(t, "widget", name)

	tags := got.FindMember("tags")
	require.Equal(t, Array, tags.Category())
	require.Len(t, tags.Members(), 2)
}

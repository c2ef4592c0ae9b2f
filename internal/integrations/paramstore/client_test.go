package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	getOut *ssm.GetParameterOutput
	getErr error
	lastIn *ssm.GetParameterInput
}

func (f *fakeAPI) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.lastIn = in
	return f.getOut, f.getErr
}

func strPtr(s string) *string { return &s }

func withValue(v string) *fakeAPI {
	return &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name: strPtr("p"), Value: strPtr(v), Type: types.ParameterTypeSecureString,
	}}}
}

func TestGetParameter_HappyPath(t *testing.T) {
	api := withValue(`{"k":"v"}`)
	client, err := New(api)
	require.NoError(t, err)

	v, err := client.GetParameter(context.Background(), " /academy/key ")
	require.NoError(t, err)
	require.Equal(t, `{"k":"v"}`, v)
	require.Equal(t, "/academy/key", *api.lastIn.Name)
	require.True(t, *api.lastIn.WithDecryption)
}

func TestGetParameter_MissingValue(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: strPtr("p")}}}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "missing value")
}

func TestGetParameter_ApiError(t *testing.T) {
	client, err := New(&fakeAPI{getErr: errors.New("boom")})
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "boom")
}

func TestGetParameter_ClientNotInitialized(t *testing.T) {
	_, err := (&Client{}).GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "not initialized")
}

func TestGetParameter_EmptyName(t *testing.T) {
	client, err := New(&fakeAPI{})
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "  ")
	require.ErrorContains(t, err, "required")
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.ErrorContains(t, err, "must not be nil")
}

func TestGetToken(t *testing.T) {
	client, err := New(withValue(`{"token":" sk-live "}`))
	require.NoError(t, err)
	tok, err := client.GetToken(context.Background(), "/academy/open-ai-token")
	require.NoError(t, err)
	require.Equal(t, "sk-live", tok)
}

func TestGetToken_Errors(t *testing.T) {
	cases := []struct {
		name string
		api  *fakeAPI
		want string
	}{
		{name: "malformed", api: withValue(`{"broken`), want: "unmarshal"},
		{name: "empty token", api: withValue(`{"other":"x"}`), want: "is empty"},
		{name: "api error", api: &fakeAPI{getErr: errors.New("ssm unavailable")}, want: "ssm unavailable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, err := New(tc.api)
			require.NoError(t, err)
			_, err = client.GetToken(context.Background(), "/academy/open-ai-token")
			require.ErrorContains(t, err, tc.want)
		})
	}
}

package tools

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r0lh/uiinject/injector"
	"github.com/r0lh/uiinject/internal/controller"
)

type fakeController struct {
	targets   []controller.Target
	connected int
	connectTo [][]uint32
	typed     []string
	menus     []int
	reply     controller.Reply
	err       error
}

func (f *fakeController) Targets() ([]controller.Target, error) { return f.targets, f.err }

func (f *fakeController) Connect(pids ...uint32) (int, error) {
	f.connectTo = append(f.connectTo, pids)
	return f.connected, nil
}

func (f *fakeController) TypeText(pid uint32, text string) ([]uint32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.typed = append(f.typed, text)
	if pid == 0 {
		return []uint32{1, 2}, nil
	}
	return []uint32{pid}, nil
}

func (f *fakeController) ActivateMenu(pid uint32, id int) ([]uint32, error) {
	f.menus = append(f.menus, id)
	return []uint32{pid}, nil
}

func (f *fakeController) QueryInfo(pid uint32) (controller.Reply, error) {
	return f.reply, f.err
}

type fakeInjector struct {
	injected []uint32
	err      error
}

func (f *fakeInjector) Inject(pid uint32) (*injector.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.injected = append(f.injected, pid)
	return &injector.Result{Pid: pid, Payload: `C:\tools\uiagent.dll`}, nil
}

func (f *fakeInjector) Eject(pid uint32) error { return f.err }

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.True(t, res.IsError)
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestListTargets(t *testing.T) {
	ctl := &fakeController{targets: []controller.Target{{Pid: 10, Name: "calc.exe"}}}
	res, out, err := makeListTargetsHandler(ctl)(context.Background(), nil, ListTargetsInput{})
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, 1, out.Count)
	assert.Equal(t, uint32(10), out.Targets[0].Pid)
}

func TestListTargetsEmptyIsNotNull(t *testing.T) {
	_, out, err := makeListTargetsHandler(&fakeController{})(context.Background(), nil, ListTargetsInput{})
	require.NoError(t, err)
	assert.NotNil(t, out.Targets)
	assert.Zero(t, out.Count)
}

func TestTypeTextBroadcastConnectsEverything(t *testing.T) {
	ctl := &fakeController{connected: 2}
	res, out, err := makeTypeTextHandler(ctl)(context.Background(), nil, TypeTextInput{Text: "12+3="})
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, []uint32{1, 2}, out.Sent)
	assert.Equal(t, [][]uint32{nil}, ctl.connectTo)
	assert.Equal(t, []string{"12+3="}, ctl.typed)
}

func TestTypeTextSingleTarget(t *testing.T) {
	ctl := &fakeController{connected: 1}
	_, out, err := makeTypeTextHandler(ctl)(context.Background(), nil, TypeTextInput{Text: "a", Pid: 7})
	require.NoError(t, err)
	assert.Equal(t, []uint32{7}, out.Sent)
	assert.Equal(t, [][]uint32{{7}}, ctl.connectTo)
}

func TestTypeTextNoTargets(t *testing.T) {
	ctl := &fakeController{}
	res, _, err := makeTypeTextHandler(ctl)(context.Background(), nil, TypeTextInput{Text: "a"})
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), controller.ErrNoTargets.Error())
	assert.Empty(t, ctl.typed)
}

func TestTypeTextRequiresText(t *testing.T) {
	res, _, err := makeTypeTextHandler(&fakeController{connected: 1})(context.Background(), nil, TypeTextInput{})
	require.NoError(t, err)
	assert.Equal(t, "text required", resultText(t, res))
}

func TestActivateMenu(t *testing.T) {
	ctl := &fakeController{connected: 1}
	_, out, err := makeActivateMenuHandler(ctl)(context.Background(), nil, ActivateMenuInput{ID: 40001, Pid: 9})
	require.NoError(t, err)
	assert.Equal(t, []uint32{9}, out.Sent)
	assert.Equal(t, []int{40001}, ctl.menus)
}

func TestQueryInfo(t *testing.T) {
	ctl := &fakeController{reply: controller.Reply{Pid: 9, HWND: 100, Title: "Calculator"}}
	res, out, err := makeQueryInfoHandler(ctl)(context.Background(), nil, QueryInfoInput{Pid: 9})
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, ctl.reply, out)

	res, _, err = makeQueryInfoHandler(ctl)(context.Background(), nil, QueryInfoInput{})
	require.NoError(t, err)
	assert.Equal(t, "pid required", resultText(t, res))
}

func TestQueryInfoFailure(t *testing.T) {
	ctl := &fakeController{err: errors.New("pipe not found")}
	res, _, err := makeQueryInfoHandler(ctl)(context.Background(), nil, QueryInfoInput{Pid: 9})
	require.NoError(t, err)
	assert.Equal(t, "query failed: pipe not found", resultText(t, res))
}

func TestInject(t *testing.T) {
	inj := &fakeInjector{}
	res, out, err := makeInjectHandler(inj)(context.Background(), nil, InjectInput{Pid: 55})
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, InjectOutput{Pid: 55, Payload: `C:\tools\uiagent.dll`}, out)
	assert.Equal(t, []uint32{55}, inj.injected)
}

func TestInjectFailure(t *testing.T) {
	inj := &fakeInjector{err: errors.New("access denied")}
	res, _, err := makeInjectHandler(inj)(context.Background(), nil, InjectInput{Pid: 55})
	require.NoError(t, err)
	assert.Equal(t, "inject failed: access denied", resultText(t, res))
}

func TestEject(t *testing.T) {
	res, out, err := makeEjectHandler(&fakeInjector{})(context.Background(), nil, InjectInput{Pid: 55})
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, EjectOutput{Pid: 55, Stopped: true}, out)
}

func TestRegisterOverSession(t *testing.T) {
	ctx := context.Background()
	server := mcp.NewServer(&mcp.Implementation{Name: "uictl", Version: "test"}, nil)
	Register(server, &fakeController{}, &fakeInjector{})

	serverT, clientT := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, serverT, nil)
	require.NoError(t, err)
	defer ss.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	defer cs.Close()

	list, err := cs.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range list.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"list_targets", "type_text", "activate_menu", "query_info", "inject", "eject"}, names)
}

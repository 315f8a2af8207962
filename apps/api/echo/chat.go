package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/chat"
	"github.com/trezcool/shule/core/user"
)

type chatApi struct {
	deps ServerDeps
}

func registerChatAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := chatApi{deps: deps}

	cg := g.Group("/chat/groups", jwt)
	cg.POST("", api.createGroup, roleMiddleware(user.RoleTeacher))
	cg.GET("", api.queryGroups, roleMiddleware(user.RoleTeacher))
	cg.GET("/:id", api.retrieveGroup)
	cg.GET("/:id/messages", api.queryGroupMessages, roleMiddleware(user.RoleTeacher))
}

// Handlers

func (api *chatApi) createGroup(ctx echo.Context) error {
	var data chat.NewGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	grp, err := api.deps.ChatSvc.CreateGroup(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "creating group")
	}
	return ctx.JSON(http.StatusCreated, grp)
}

// queryGroups lists the groups created by the requesting teacher.
func (api *chatApi) queryGroups(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	groups, err := api.deps.ChatSvc.QueryGroupsByCreator(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying groups")
	}
	if groups == nil {
		groups = []chat.Group{}
	}
	return ctx.JSON(http.StatusOK, groups)
}

func (api *chatApi) retrieveGroup(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	grp, err := api.deps.ChatSvc.GetGroup(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == chat.ErrGroupNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding group by ID")
	}

	// a group is only visible to its creator, its members and admins
	if !(claims.IsAdmin || grp.CreatorID == claims.Subject || grp.HasMember(claims.Subject)) {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *chatApi) queryGroupMessages(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	grp, err := api.deps.ChatSvc.GetGroup(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == chat.ErrGroupNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding group by ID")
	}
	if !(claims.IsAdmin || grp.CreatorID == claims.Subject) {
		return errHttpForbidden
	}

	ordering := new(Ordering)
	ordering.Bind(ctx)

	msgs, err := api.deps.ChatSvc.ListGroupMessages(ctx.Request().Context(), grp.ID, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying group messages")
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

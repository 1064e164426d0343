package routes

import (
	"net/http"

	"github.com/loopfeed/loopfeed/internal/app"
	"github.com/loopfeed/loopfeed/internal/handler"
	"github.com/loopfeed/loopfeed/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	home := handler.NewHomeHandler(app.DB)
	auth := handler.NewAuthHandler(app.AuthService, app.UserService)
	drafts := handler.NewDraftHandler(
		app.Drafts,
		app.CardEditor,
		app.PublishService,
		app.LoopService,
		app.UserService,
		app.Cfg.UploadMaxSize,
	)
	loops := handler.NewLoopHandler(app.LoopService)
	folders := handler.NewFolderHandler(app.FolderService, app.UserService)
	whispers := handler.NewWhisperHandler(app.WhisperService)
	metadata := handler.NewMetadataHandler(app.MetadataService)

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	mux.HandleFunc("GET /healthz", home.Health)

	// Auth (rate limited)
	authLimit := middleware.RateLimitAuth()
	mux.HandleFunc("POST /api/auth/register", authLimit(middleware.RequireGuest(auth.Register)))
	mux.HandleFunc("POST /api/auth/login", authLimit(middleware.RequireGuest(auth.Login)))
	mux.HandleFunc("POST /api/auth/logout", auth.Logout)

	// Link metadata (rate limited, referer checked in the handler)
	mux.HandleFunc("POST /api/metadata", middleware.RateLimitMetadata()(metadata.Fetch))

	// Loops
	mux.HandleFunc("GET /api/loops/explore", loops.Explore)
	mux.HandleFunc("GET /api/loops/{id}", loops.View)
	mux.HandleFunc("GET /api/users/{username}/loops", loops.ByUser)
	mux.HandleFunc("GET /api/users/{username}/folders", folders.ByUser)
	mux.HandleFunc("GET /api/folders/{id}", folders.View)

	// Guests may whisper anonymously
	mux.HandleFunc("POST /api/loops/{id}/whispers", whispers.Send)

	// ============================================================================
	// PROTECTED ROUTES
	// ============================================================================

	// Account
	mux.HandleFunc("GET /api/me", middleware.RequireAuth(auth.Me))
	mux.HandleFunc("PATCH /api/me/profile", middleware.RequireAuth(auth.UpdateProfile))
	mux.HandleFunc("GET /api/users/search", middleware.RequireAuth(auth.SearchUsers))

	// Authoring sessions
	mux.HandleFunc("POST /api/drafts", middleware.RequireAuth(drafts.Create))
	mux.HandleFunc("POST /api/loops/{id}/edit", middleware.RequireAuth(drafts.Edit))
	mux.HandleFunc("POST /api/loops/{id}/remix", middleware.RequireAuth(drafts.Remix))
	mux.HandleFunc("GET /api/drafts/{sid}", middleware.RequireAuth(drafts.Get))
	mux.HandleFunc("PATCH /api/drafts/{sid}", middleware.RequireAuth(drafts.Update))
	mux.HandleFunc("DELETE /api/drafts/{sid}", middleware.RequireAuth(drafts.Discard))
	mux.HandleFunc("POST /api/drafts/{sid}/tags", middleware.RequireAuth(drafts.AddTag))
	mux.HandleFunc("DELETE /api/drafts/{sid}/tags/{tag}", middleware.RequireAuth(drafts.RemoveTag))
	mux.HandleFunc("PUT /api/drafts/{sid}/collaborators", middleware.RequireAuth(drafts.SetCollaborators))
	mux.HandleFunc("POST /api/drafts/{sid}/cards", middleware.RequireAuth(drafts.AddCard))
	mux.HandleFunc("POST /api/drafts/{sid}/cards/move", middleware.RequireAuth(drafts.MoveCard))
	mux.HandleFunc("PUT /api/drafts/{sid}/cards/{pos}", middleware.RequireAuth(drafts.ReplaceCard))
	mux.HandleFunc("DELETE /api/drafts/{sid}/cards/{pos}", middleware.RequireAuth(drafts.RemoveCard))
	mux.HandleFunc("POST /api/drafts/{sid}/publish", middleware.RequireAuth(drafts.Publish))

	// Library
	mux.HandleFunc("POST /api/loops/{id}/archive", middleware.RequireAuth(loops.Archive))
	mux.HandleFunc("POST /api/loops/{id}/restore", middleware.RequireAuth(loops.Restore))
	mux.HandleFunc("POST /api/loops/{id}/trash", middleware.RequireAuth(loops.Trash))
	mux.HandleFunc("DELETE /api/loops/{id}", middleware.RequireAuth(loops.Delete))
	mux.HandleFunc("GET /api/library/{status}", middleware.RequireAuth(loops.Library))

	// Folders
	mux.HandleFunc("GET /api/folders", middleware.RequireAuth(folders.List))
	mux.HandleFunc("POST /api/folders", middleware.RequireAuth(folders.Create))
	mux.HandleFunc("PATCH /api/folders/{id}", middleware.RequireAuth(folders.Update))
	mux.HandleFunc("DELETE /api/folders/{id}", middleware.RequireAuth(folders.Delete))
	mux.HandleFunc("POST /api/folders/{id}/visibility", middleware.RequireAuth(folders.ToggleVisibility))
	mux.HandleFunc("POST /api/folders/{id}/loops/{loopID}", middleware.RequireAuth(folders.AddLoop))
	mux.HandleFunc("DELETE /api/folders/{id}/loops/{loopID}", middleware.RequireAuth(folders.RemoveLoop))

	// Whispers
	mux.HandleFunc("GET /api/whispers", middleware.RequireAuth(whispers.Inbox))
	mux.HandleFunc("POST /api/whispers/{id}/read", middleware.RequireAuth(whispers.MarkRead))
	mux.HandleFunc("DELETE /api/whispers/{id}", middleware.RequireAuth(whispers.Delete))

	// ============================================================================
	// FALLBACK
	// ============================================================================

	mux.HandleFunc("/{path...}", home.NotFound)

	// Global middleware - executed in order (top to bottom)
	return middleware.Chain(
		mux,
		middleware.RequestID,      // Request ID first so every log line carries it
		middleware.Config(app.Cfg),
		middleware.RequestLogging,
		middleware.CSRFProtection, // Cookie sessions only; bearer clients are exempt
		middleware.AuthMiddleware(app.AuthService, app.UserService),
	)
}

package bot

const (
	msgUnknownCommand = "Unknown command. Type /help for the list of available commands."
	msgEmptyTree      = "The category tree is empty. Add a root with /addElement <element>."
	msgTreeHeader     = "Categories:\n"

	msgRootAdded      = "Root element '%s' added."
	msgChildAdded     = "Child element '%s' added to parent '%s'."
	msgParentNotFound = "Parent element '%s' not found."
	msgRemoved        = "Element '%s' removed along with its children."
	msgNotFound       = "Element '%s' not found."

	msgViewTreeUsage = "Invalid number of arguments. Usage: /viewTree"
	msgAddUsage      = "Invalid number of arguments. Usage: /addElement <element> or /addElement <parent> <child>"
	msgRemoveUsage   = "Invalid number of arguments. Usage: /removeElement <element>"
	msgHelpUsage     = "Invalid number of arguments. Usage: /help"
	msgDownloadUsage = "Invalid number of arguments. Usage: /download"
	msgUploadUsage   = "Invalid number of arguments. Attach an Excel document and use /upload as its caption."

	msgDownloadNeedsChat = "The /download command sends a file and cannot be run as a plain text command."
	msgUploadNeedsFile   = "Please attach an Excel document with the category tree and use /upload as its caption."
	msgUploadUnsupported = "Uploading files is not available on this channel."
	msgUploadTooLarge    = "The attached file is too large. The limit is %d MB."
	msgUploadBadFile     = "The attached file could not be read as an Excel workbook."
	msgImported          = "Imported %d categories."
	msgImportSkipped     = "Skipped %d rows:"
	msgImportSkippedRow  = "- line %d '%s': %s"

	msgDownloadCaption = "Category tree export"
	msgStorageFailure  = "The category store is unavailable right now. Please try again later."
	msgExportFailure   = "Failed to create the Excel file. Please try again later."
	msgTreeTooLarge    = "The category tree is too large to process."
	msgInternalFailure = "Something went wrong while handling the command. Please try again later."

	msgHelp = `Available commands:
/viewTree - show the category tree
/addElement <element> - add a root category
/addElement <parent> <child> - add a child category under an existing parent
/removeElement <element> - remove a category together with all of its children
/download - get the category tree as an Excel file
/upload - send an Excel file with /upload as its caption to import categories
/help - show this message

Names are case sensitive and cannot contain spaces.`
)
